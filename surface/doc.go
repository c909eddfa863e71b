/*
Package surface reads, writes, and queries segmented object surfaces.

A surface is a signed mask sampled on a regular lattice spanning an axis-aligned box.
The JSON wire format is a list of objects:

	[
	  {
	    "xRange": [minX, maxX],
	    "yRange": [minY, maxY],
	    "zRange": [minZ, maxZ],
	    "mask": [[[v_x0y0z0, v_x1y0z0, ...], ...], ...]
	  },
	  ...
	]

The mask is nested [z][y][x].  Both ends of each range are voxel centers, so a range
[3, 9] at unit spacing holds 7 voxels.  Mask values of 0 or more are on or inside the
object and negative values are outside; the zero level of the interpolated mask is the
boundary.  An element may carry an optional non-negative integer "id".

Sets of surfaces may also be wrapped in a versioned export envelope:

	{"version": "0.1.0", "metadata": {...}, "surfaces": [...]}

or written in a compact msgpack form where each mask is a bitmap of its positive voxels.

Decoding is all or nothing: any bad element fails the whole set with an *Error giving
the kind, surface index, and axis where known.
*/
package surface
