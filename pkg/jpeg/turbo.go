//go:build cgo && !purego

package jpeg

/*
#cgo pkg-config: libjpeg
#include <stdio.h>
#include <jpeglib.h>
#include <jerror.h>
#include <stdlib.h>
#include <string.h>
#include <setjmp.h>

typedef struct {
    struct jpeg_error_mgr pub;
    jmp_buf setjmp_buffer;
    char msg[JMSG_LENGTH_MAX];
} my_error_mgr;

static void my_error_exit(j_common_ptr cinfo) {
    my_error_mgr *err = (my_error_mgr *)cinfo->err;
    (*cinfo->err->format_message)(cinfo, err->msg);
    longjmp(err->setjmp_buffer, 1);
}

// Encode packed 8-bit RGB rows with optimised Huffman tables.
static int encode_rgb(
    unsigned char *rgb, int stride,
    int width, int height, int quality,
    unsigned char **out_buffer, unsigned long *out_size,
    char **error_msg) {

    struct jpeg_compress_struct cinfo;
    my_error_mgr jerr;
    JSAMPROW row[1];

    *out_buffer = NULL;
    *out_size = 0;
    *error_msg = NULL;

    cinfo.err = jpeg_std_error(&jerr.pub);
    jerr.pub.error_exit = my_error_exit;
    if (setjmp(jerr.setjmp_buffer)) {
        *error_msg = strdup(jerr.msg);
        jpeg_destroy_compress(&cinfo);
        if (*out_buffer) {
            free(*out_buffer);
            *out_buffer = NULL;
        }
        return -1;
    }

    jpeg_create_compress(&cinfo);
    jpeg_mem_dest(&cinfo, out_buffer, out_size);

    cinfo.image_width = width;
    cinfo.image_height = height;
    cinfo.input_components = 3;
    cinfo.in_color_space = JCS_RGB;

    jpeg_set_defaults(&cinfo);
    jpeg_set_quality(&cinfo, quality, TRUE);
    cinfo.optimize_coding = TRUE;

    jpeg_start_compress(&cinfo, TRUE);
    while (cinfo.next_scanline < cinfo.image_height) {
        row[0] = rgb + (size_t)cinfo.next_scanline * stride;
        jpeg_write_scanlines(&cinfo, row, 1);
    }
    jpeg_finish_compress(&cinfo);
    jpeg_destroy_compress(&cinfo);
    return 0;
}
*/
import "C"
import (
	"image"
	"image/color"
	"io"
	"unsafe"

	"gitlab.com/tozd/go/errors"
)

const optimized = true

func encode(w io.Writer, img image.Image, quality int) error {
	rgb, stride := packRGB(img)
	b := img.Bounds()

	var (
		outBuffer *C.uchar
		outSize   C.ulong
		errorMsg  *C.char
	)

	result := C.encode_rgb(
		(*C.uchar)(unsafe.Pointer(&rgb[0])),
		C.int(stride),
		C.int(b.Dx()),
		C.int(b.Dy()),
		C.int(quality),
		&outBuffer,
		&outSize,
		&errorMsg,
	)

	if result != 0 || outBuffer == nil {
		if errorMsg != nil {
			msg := C.GoString(errorMsg)
			C.free(unsafe.Pointer(errorMsg))
			return errors.Errorf("jpeg encode failed: %s", msg)
		}
		return errors.New("jpeg encode failed")
	}
	defer C.free(unsafe.Pointer(outBuffer))

	data := unsafe.Slice((*byte)(unsafe.Pointer(outBuffer)), int(outSize))
	if _, err := w.Write(data); err != nil {
		return errors.Errorf("jpeg write: %w", err)
	}
	return nil
}

// packRGB lays img out as tightly packed RGB rows.
func packRGB(img image.Image) ([]byte, int) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	stride := width * 3
	out := make([]byte, stride*height)

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+width*4]
			dst := out[y*stride : (y+1)*stride]
			for x := 0; x < width; x++ {
				dst[x*3] = row[x*4]
				dst[x*3+1] = row[x*4+1]
				dst[x*3+2] = row[x*4+2]
			}
		}
	case *image.YCbCr:
		for y := 0; y < height; y++ {
			dst := out[y*stride : (y+1)*stride]
			for x := 0; x < width; x++ {
				yi := src.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := src.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				dst[x*3], dst[x*3+1], dst[x*3+2] = r, g, bl
			}
		}
	default:
		for y := 0; y < height; y++ {
			dst := out[y*stride : (y+1)*stride]
			for x := 0; x < width; x++ {
				c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
				dst[x*3], dst[x*3+1], dst[x*3+2] = c.R, c.G, c.B
			}
		}
	}
	return out, stride
}
