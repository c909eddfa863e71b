package dvid

import (
	"bytes"

	. "github.com/janelia-flyem/go/gocheck"
)

func testPayload() []byte {
	var buf bytes.Buffer
	for i := 0; i < 2000; i++ {
		buf.WriteString(`{"xRange":[0,4],"mask":[[[-1,0,1,0,-1]]]}`)
	}
	return buf.Bytes()
}

func (suite *DataSuite) TestSerializationFormat(c *C) {
	for _, compress := range []Compression{Uncompressed, Snappy, LZ4, Gzip, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			format := EncodeSerializationFormat(compress, checksum)
			gotCompress, gotChecksum := DecodeSerializationFormat(format)
			c.Assert(gotCompress, Equals, compress)
			c.Assert(gotChecksum, Equals, checksum)
		}
	}
}

func (suite *DataSuite) TestSerializeData(c *C) {
	data := testPayload()
	for _, compress := range []Compression{Uncompressed, Snappy, LZ4, Gzip, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			s, err := SerializeData(data, compress, checksum)
			c.Assert(err, IsNil)
			if compress != Uncompressed {
				c.Assert(len(s) < len(data), Equals, true)
			}

			got, gotCompress, err := DeserializeData(s, true)
			c.Assert(err, IsNil)
			c.Assert(gotCompress, Equals, compress)
			c.Assert(bytes.Equal(got, data), Equals, true)

			if checksum != NoChecksum {
				s[len(s)-1] ^= 0x04 // Flip a bit
				_, _, err = DeserializeData(s, true)
				c.Assert(err, NotNil)
			}
		}
	}
}

func (suite *DataSuite) TestParseCompression(c *C) {
	for name, expected := range map[string]Compression{
		"none": Uncompressed, "": Uncompressed, "snappy": Snappy,
		"LZ4": LZ4, "gzip": Gzip, "zstd": Zstd,
	} {
		got, err := ParseCompression(name)
		c.Assert(err, IsNil)
		c.Assert(got, Equals, expected)
	}
	_, err := ParseCompression("brotli")
	c.Assert(err, NotNil)

	_, _, err = DeserializeData(nil, true)
	c.Assert(err, NotNil)
}
