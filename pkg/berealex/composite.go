package berealex

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"k8s.io/klog/v2"

	// webp sources must decode through image.Decode
	_ "golang.org/x/image/webp"
)

// Inset geometry mirroring the app's on-screen presentation: the front
// capture sits in the top-left corner of the back capture at roughly a third
// of its width, cropped to 3:4 and framed with a thin border.
const (
	insetScale   = 0.3
	insetMargin  = 0.03
	insetAspectW = 3
	insetAspectH = 4
)

var compositeQuality = 95

// Composite draws the front image as an inset over the back image. The
// result always has the back image's dimensions.
func Composite(back, front image.Image) image.Image {
	b := back.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), back, b.Min, draw.Src)

	front = cropToAspect(front, insetAspectW, insetAspectH)

	insetW := int(float64(b.Dx()) * insetScale)
	if insetW < 1 {
		insetW = 1
	}
	insetH := insetW * insetAspectH / insetAspectW
	inset := transform.Resize(front, insetW, insetH, transform.Lanczos)

	margin := int(float64(b.Dx()) * insetMargin)
	border := insetW / 50
	if border < 1 {
		border = 1
	}

	frame := image.Rect(margin, margin, margin+insetW+2*border, margin+insetH+2*border)
	draw.Draw(out, frame, image.NewUniform(color.Black), image.Point{}, draw.Src)

	at := image.Pt(margin+border, margin+border)
	draw.Draw(out, image.Rectangle{Min: at, Max: at.Add(image.Pt(insetW, insetH))}, inset, inset.Bounds().Min, draw.Src)

	return out
}

// cropToAspect center-crops img to the given aspect ratio.
func cropToAspect(img image.Image, aw, ah int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	cw, ch := w, h
	if w*ah > h*aw {
		cw = h * aw / ah
	} else {
		ch = w * ah / aw
	}

	x0 := b.Min.X + (w-cw)/2
	y0 := b.Min.Y + (h-ch)/2
	return transform.Crop(img, image.Rect(x0, y0, x0+cw, y0+ch))
}

// CompositeFiles decodes the back and front captures, overlays them and
// writes the result as a JPEG.
func CompositeFiles(backPath, frontPath, outPath string) error {
	back, err := imgio.Open(backPath)
	if err != nil {
		return fmt.Errorf("open back image: %w", err)
	}
	front, err := imgio.Open(frontPath)
	if err != nil {
		return fmt.Errorf("open front image: %w", err)
	}

	klog.V(1).Infof("compositing %s over %s -> %s", frontPath, backPath, outPath)
	out := Composite(back, front)
	if err := imgio.Save(outPath, out, imgio.JPEGEncoder(compositeQuality)); err != nil {
		return fmt.Errorf("save composite: %w", err)
	}
	return nil
}
