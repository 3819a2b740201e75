package core

// ImageBuffer is the executor output: Width*Height texels of RGBA float32,
// row 0 at the top.
type ImageBuffer struct {
	Width  uint32
	Height uint32
	Pix    []float32
}

func NewImageBuffer(width, height uint32) *ImageBuffer {
	return &ImageBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]float32, int(width)*int(height)*4),
	}
}

func (img *ImageBuffer) offset(x, y int) int {
	return (y*int(img.Width) + x) * 4
}

func (img *ImageBuffer) At(x, y int) [4]float32 {
	i := img.offset(x, y)
	return [4]float32{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
}

func (img *ImageBuffer) Set(x, y int, c [4]float32) {
	i := img.offset(x, y)
	copy(img.Pix[i:i+4], c[:])
}

// Luminance is the Rec. 709 luma of the texel at (x, y).
func (img *ImageBuffer) Luminance(x, y int) float32 {
	c := img.At(x, y)
	return 0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]
}
