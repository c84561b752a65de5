package pngn

import (
	"encoding/binary"
)

// EXIF tag constants
const (
	// Main IFD tags
	tagImageWidth     = 0x0100
	tagImageLength    = 0x0101
	tagMake           = 0x010F
	tagModel          = 0x0110
	tagOrientation    = 0x0112
	tagSoftware       = 0x0131
	tagDateTime       = 0x0132
	tagArtist         = 0x013B
	tagCopyright      = 0x8298
	tagExifIFDPointer = 0x8769

	// EXIF SubIFD tags
	tagDateTimeOriginal = 0x9003
)

// EXIF data type constants
const (
	typeUnsignedByte     = 1
	typeASCIIString      = 2
	typeUnsignedShort    = 3
	typeUnsignedLong     = 4
	typeUnsignedRational = 5
	typeSignedByte       = 6
	typeUndefined        = 7
	typeSignedShort      = 8
	typeSignedLong       = 9
	typeSignedRational   = 10
	typeSingleFloat      = 11
	typeDoubleFloat      = 12
)

// Exif holds the commonly used fields of an eXIf chunk.
type Exif struct {
	// Orientation is the EXIF orientation, 1 to 8, or 0 if absent.
	Orientation int
	// Width and Height are the dimensions recorded in the EXIF data. They
	// may disagree with IHDR, which is authoritative.
	Width, Height int

	Make             string
	Model            string
	Software         string
	DateTime         string
	DateTimeOriginal string
	Artist           string
	Copyright        string
}

// tiffReader reads the TIFF structure that an eXIf chunk holds. Reads past
// the end of the data return zero values.
type tiffReader struct {
	data  []byte
	order binary.ByteOrder
}

func (r *tiffReader) uint16(offset int) uint16 {
	if offset < 0 || offset+2 > len(r.data) {
		return 0
	}

	return r.order.Uint16(r.data[offset:])
}

func (r *tiffReader) uint32(offset int) uint32 {
	if offset < 0 || offset+4 > len(r.data) {
		return 0
	}

	return r.order.Uint32(r.data[offset:])
}

func (r *tiffReader) readString(offset, maxLen int) string {
	if offset < 0 || offset >= len(r.data) {
		return ""
	}

	end := offset
	for end < len(r.data) && end < offset+maxLen && r.data[end] != 0 {
		end++
	}

	return string(r.data[offset:end])
}

// ifdEntry is one 12-byte directory entry. value is the offset of the value
// bytes: inside the entry for values of up to 4 bytes, elsewhere otherwise.
type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value int
}

// uint reads a SHORT or LONG entry.
func (r *tiffReader) uint(e ifdEntry) int {
	switch e.typ {
	case typeUnsignedShort:
		return int(r.uint16(e.value))
	case typeUnsignedLong:
		return int(r.uint32(e.value))
	}

	return 0
}

// walk calls visit for every entry of the IFD at offset.
func (r *tiffReader) walk(offset int, visit func(e ifdEntry)) {
	if offset < 8 || offset+2 > len(r.data) {
		return
	}

	n := int(r.uint16(offset))
	offset += 2

	for i := 0; i < n; i++ {
		at := offset + i*12
		if at+12 > len(r.data) {
			break
		}

		e := ifdEntry{
			tag:   r.uint16(at),
			typ:   r.uint16(at + 2),
			count: r.uint32(at + 4),
			value: at + 8,
		}

		if dataSize(e.typ, e.count) > 4 {
			e.value = int(r.uint32(at + 8))
			if e.value >= len(r.data) {
				continue
			}
		}

		visit(e)
	}
}

// parseExif decodes the payload of an eXIf chunk.
func parseExif(data []byte) (*Exif, error) {
	if len(data) < 8 {
		return nil, invalidf("eXIf chunk too short")
	}

	r := &tiffReader{data: data}
	switch string(data[:2]) {
	case "II":
		r.order = binary.LittleEndian
	case "MM":
		r.order = binary.BigEndian
	default:
		return nil, invalidf("eXIf byte order %q", data[:2])
	}

	if r.uint16(2) != 42 {
		return nil, invalidf("eXIf magic number %d", r.uint16(2))
	}

	ifd := int(r.uint32(4))
	if ifd < 8 || ifd >= len(data) {
		return nil, invalidf("eXIf IFD offset %d", ifd)
	}

	exif := &Exif{}
	var subIFD int

	r.walk(ifd, func(e ifdEntry) {
		str := func(dst *string) {
			if e.typ == typeASCIIString {
				*dst = r.readString(e.value, int(e.count))
			}
		}

		switch e.tag {
		case tagOrientation:
			if e.typ == typeUnsignedShort {
				exif.Orientation = r.uint(e)
			}
		case tagImageWidth:
			exif.Width = r.uint(e)
		case tagImageLength:
			exif.Height = r.uint(e)
		case tagMake:
			str(&exif.Make)
		case tagModel:
			str(&exif.Model)
		case tagSoftware:
			str(&exif.Software)
		case tagDateTime:
			str(&exif.DateTime)
		case tagArtist:
			str(&exif.Artist)
		case tagCopyright:
			str(&exif.Copyright)
		case tagExifIFDPointer:
			if e.typ == typeUnsignedLong {
				subIFD = r.uint(e)
			}
		}
	})

	// A pointer back at IFD0 would only repeat it.
	if subIFD != ifd {
		r.walk(subIFD, func(e ifdEntry) {
			if e.tag == tagDateTimeOriginal && e.typ == typeASCIIString {
				exif.DateTimeOriginal = r.readString(e.value, int(e.count))
			}
		})
	}

	return exif, nil
}

// dataSize calculates the size in bytes for a given EXIF data type and count.
func dataSize(typ uint16, count uint32) int {
	var size int
	switch typ {
	case typeUnsignedShort, typeSignedShort:
		size = 2
	case typeUnsignedLong, typeSignedLong, typeSingleFloat:
		size = 4
	case typeUnsignedRational, typeSignedRational, typeDoubleFloat:
		size = 8
	default:
		size = 1
	}

	return size * int(count)
}
