package frame

import(
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"skybrowse/pkg/fgrid"
)

// FITS files are a sequence of HDUs: an ASCII header of 80-byte
// records padded to 2880-byte blocks, then a data block padded the
// same way. We walk the HDUs and take the first one holding a 2-D (or
// higher) image, which is what the archive's science products look
// like.

const fitsBlockSize = 2880
const fitsMaxHDUs = 16

type fitsHeader struct {
	bitpix  int
	naxes   []int
	bzero   float64
	bscale  float64
	exptime float64
	end     bool
}

func LoadFITS(filename string) (Frame, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Frame{}, fmt.Errorf("open+r fits '%s': %w", filename, err)
	}
	defer f.Close()

	fr, err := DecodeFITS(f)
	if err != nil {
		return fr, fmt.Errorf("fits '%s': %w", filename, err)
	}
	fr.LoadFilename = filename
	return fr, nil
}

// DecodeFITS reads HDUs until it finds image data.
func DecodeFITS(r io.Reader) (Frame, error) {
	for i:=0; i<fitsMaxHDUs; i++ {
		hdr, err := readFITSHeader(r)
		if err != nil {
			if i == 0 {
				return Frame{}, fmt.Errorf("%w: %v", ErrUnreadableFrame, err)
			}
			return Frame{}, fmt.Errorf("%w: no image HDU found", ErrUnreadableFrame)
		}

		if len(hdr.naxes) >= 2 && hdr.naxes[0] > 0 && hdr.naxes[1] > 0 {
			return readFITSData(r, hdr)
		}

		if err := skipFITSData(r, hdr); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrUnreadableFrame, err)
		}
	}
	return Frame{}, fmt.Errorf("%w: no image HDU in first %d", ErrUnreadableFrame, fitsMaxHDUs)
}

func readFITSHeader(r io.Reader) (fitsHeader, error) {
	hdr := fitsHeader{bscale: 1.0}
	record := make([]byte, 80)

	for !hdr.end {
		for i:=0; i<fitsBlockSize/80; i++ {
			if _, err := io.ReadFull(r, record); err != nil {
				return hdr, fmt.Errorf("header record: %v", err)
			}
			keyword := strings.TrimSpace(string(record[:8]))

			if keyword == "END" {
				hdr.end = true
				// Keep consuming to the block boundary
				continue
			}
			if hdr.end || record[8] != '=' {
				continue
			}

			raw := strings.TrimSpace(strings.SplitN(string(record[10:]), "/", 2)[0])
			switch keyword {
			case "BITPIX":
				hdr.bitpix, _ = strconv.Atoi(raw)
			case "NAXIS":
				n, _ := strconv.Atoi(raw)
				if n < 0 || n > 8 {
					return hdr, fmt.Errorf("bad NAXIS %d", n)
				}
				hdr.naxes = make([]int, n)
			case "BZERO":
				hdr.bzero, _ = strconv.ParseFloat(raw, 64)
			case "BSCALE":
				hdr.bscale, _ = strconv.ParseFloat(raw, 64)
			case "EXPTIME", "EXPOSURE":
				hdr.exptime, _ = strconv.ParseFloat(raw, 64)
			default:
				if strings.HasPrefix(keyword, "NAXIS") {
					axis, err := strconv.Atoi(keyword[5:])
					if err == nil && axis >= 1 && axis <= len(hdr.naxes) {
						hdr.naxes[axis-1], _ = strconv.Atoi(raw)
					}
				}
			}
		}
	}

	return hdr, nil
}

func (h fitsHeader)dataBytes() int64 {
	if len(h.naxes) == 0 || h.bitpix == 0 {
		return 0
	}
	n := int64(1)
	for _, ax := range h.naxes {
		n *= int64(ax)
	}
	sz := n * int64(abs(h.bitpix)) / 8
	// Pad to block boundary
	if rem := sz % fitsBlockSize; rem != 0 {
		sz += fitsBlockSize - rem
	}
	return sz
}

func skipFITSData(r io.Reader, hdr fitsHeader) error {
	sz := hdr.dataBytes()
	if sz == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, sz)
	return err
}

func readFITSData(r io.Reader, hdr fitsHeader) (Frame, error) {
	w, h := hdr.naxes[0], hdr.naxes[1]
	if int64(w)*int64(h) > 1<<30 {
		return Frame{}, fmt.Errorf("%w: image %dx%d too large", ErrUnreadableFrame, w, h)
	}

	bpp := abs(hdr.bitpix) / 8
	raw := make([]byte, w*h*bpp) // only the first 2-D plane; extra axes are ignored
	if _, err := io.ReadFull(r, raw); err != nil {
		return Frame{}, fmt.Errorf("%w: pixel data: %v", ErrUnreadableFrame, err)
	}

	fr := Frame{
		Grid:         fgrid.NewFloatGrid(w, h),
		BitDepth:     abs(hdr.bitpix),
		ExposureSecs: hdr.exptime,
	}

	for i:=0; i<w*h; i++ {
		var v float64
		switch hdr.bitpix {
		case 8:
			v = float64(raw[i])
		case 16:
			v = float64(int16(binary.BigEndian.Uint16(raw[i*2:])))
		case 32:
			v = float64(int32(binary.BigEndian.Uint32(raw[i*4:])))
		case -32:
			v = float64(math.Float32frombits(binary.BigEndian.Uint32(raw[i*4:])))
		case -64:
			v = math.Float64frombits(binary.BigEndian.Uint64(raw[i*8:]))
		default:
			return Frame{}, fmt.Errorf("%w: unsupported BITPIX %d", ErrUnreadableFrame, hdr.bitpix)
		}

		v = v*hdr.bscale + hdr.bzero
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0 // cosmic-ray / blanked samples come through as NaN
		}
		fr.Grid.Set(i%w, i/w, v)
	}

	fr.trackRange()
	return fr, nil
}

func abs(n int) int {
	if n < 0 { return -n }
	return n
}
