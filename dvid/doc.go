/*
	Package dvid provides types, constants, and functions that have no other dependencies
	and can be used by all packages within surfaces.  This includes leveled logging,
	floating-point coordinates, and the compression/checksum container used to persist
	and transmit serialized surface sets.
*/
package dvid
