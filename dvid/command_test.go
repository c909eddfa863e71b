package dvid

import (
	. "github.com/janelia-flyem/go/gocheck"
)

func (s *DataSuite) TestCommand(c *C) {
	cmd := Command([]string{"crossing", "cube.json", "axis=z", "point=1,2,3", "extra", "max=2.5"})
	c.Assert(cmd.Name(), Equals, "crossing")
	c.Assert(cmd.String(), Equals, "crossing cube.json axis=z point=1,2,3 extra max=2.5")

	value, found := cmd.Parameter(KeyPoint)
	c.Assert(found, Equals, true)
	c.Assert(value, Equals, "1,2,3")
	_, found = cmd.Parameter(KeyIndex)
	c.Assert(found, Equals, false)

	var filename string
	overflow := cmd.CommandArgs(&filename)
	c.Assert(filename, Equals, "cube.json")
	c.Assert(overflow, DeepEquals, []string{"extra"})

	var a, b, d string
	overflow = cmd.CommandArgs(&a, &b, &d)
	c.Assert(a, Equals, "cube.json")
	c.Assert(b, Equals, "extra")
	c.Assert(d, Equals, "")
	c.Assert(overflow, HasLen, 0)

	index, err := cmd.IntParameter(KeyIndex, 3)
	c.Assert(err, IsNil)
	c.Assert(index, Equals, 3)

	max, found, err := cmd.FloatParameter(KeyMax)
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)
	c.Assert(max, Equals, 2.5)
	_, found, err = cmd.FloatParameter(KeyMin)
	c.Assert(err, IsNil)
	c.Assert(found, Equals, false)

	bad := Command([]string{"classify", "index=two", "min=x"})
	_, err = bad.IntParameter(KeyIndex, 0)
	c.Assert(err, NotNil)
	_, _, err = bad.FloatParameter(KeyMin)
	c.Assert(err, NotNil)
}
