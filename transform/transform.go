// Package transform turns one source photograph into one annotated video frame.
package transform

import (
	"fmt"
	"image"
	"os"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"timelapse/models"
)

// Transformer converts a WorkItem into a TransformResult. Implementations
// report failures through the result and never panic out of Transform.
type Transformer interface {
	Transform(item models.WorkItem) models.TransformResult
}

// Overlay proportions relative to the rotated frame width.
const (
	fontSizeDivisor = 20
	strokeDivisor   = 8
	insetPerStroke  = 2
)

var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
	"linear":     imaging.Linear,
	"hermite":    imaging.Hermite,
	"mitchell":   imaging.MitchellNetravali,
	"catmullrom": imaging.CatmullRom,
	"bspline":    imaging.BSpline,
	"gaussian":   imaging.Gaussian,
	"bartlett":   imaging.Bartlett,
	"lanczos":    imaging.Lanczos,
	"hann":       imaging.Hann,
	"hamming":    imaging.Hamming,
	"blackman":   imaging.Blackman,
	"welch":      imaging.Welch,
	"cosine":     imaging.Cosine,
}

// FilterNames returns the accepted resize filter names, sorted.
func FilterNames() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseFilter maps a filter name (case-insensitive) to an imaging filter.
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	f, ok := filters[strings.ToLower(name)]
	if !ok {
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resize filter %q, must be one of: %s",
			name, strings.Join(FilterNames(), ", "))
	}
	return f, nil
}

// LoadFont parses the TrueType/OpenType font at path. An empty path selects
// the bundled Go Regular font.
func LoadFont(path string) (*opentype.Font, error) {
	data := goregular.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return f, nil
}

// ImageTransformer decodes, downscales, rotates and captions photographs.
// It is safe for concurrent use: the parsed font is shared and faces are
// created per frame.
type ImageTransformer struct {
	font   *opentype.Font
	filter imaging.ResampleFilter
}

// NewImageTransformer creates a transformer using the font at fontPath (or
// the bundled font when empty) and the given resize filter.
func NewImageTransformer(fontPath string, filter imaging.ResampleFilter) (*ImageTransformer, error) {
	f, err := LoadFont(fontPath)
	if err != nil {
		return nil, err
	}
	return &ImageTransformer{font: f, filter: filter}, nil
}

// Transform implements Transformer.
func (t *ImageTransformer) Transform(item models.WorkItem) (result models.TransformResult) {
	idx := item.Index()
	defer func() {
		if r := recover(); r != nil {
			result = models.NewTransformFailure(idx, fmt.Errorf("frame %03d (%s): panic: %v", idx, item.Descriptor.Path, r))
		}
	}()

	frame, err := t.Render(item)
	if err != nil {
		return models.NewTransformFailure(idx, fmt.Errorf("frame %03d (%s): %w", idx, item.Descriptor.Path, err))
	}

	result, err = models.NewTransformSuccess(idx, frame)
	if err != nil {
		return models.NewTransformFailure(idx, err)
	}
	return result
}

// Render produces the final frame for item.
func (t *ImageTransformer) Render(item models.WorkItem) (*image.NRGBA, error) {
	src, err := imaging.Open(item.Descriptor.Path)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	w, h := TargetSize(src.Bounds().Dx(), src.Bounds().Dy(), item.Params.ScaleRatio)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("image %dx%d is too small for resize ratio %d",
			src.Bounds().Dx(), src.Bounds().Dy(), item.Params.ScaleRatio)
	}

	resized := imaging.Resize(src, w, h, t.filter)
	frame := imaging.Rotate270(resized)

	if err := t.drawCaption(frame, item.Params.OverlayText); err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	return frame, nil
}

// TargetSize returns the downscaled dimensions floor(w/ratio) x floor(h/ratio).
func TargetSize(width, height, ratio int) (int, int) {
	if ratio < 1 {
		ratio = 1
	}
	return width / ratio, height / ratio
}

// CaptionMetrics returns font size, outline width and inset for a frame width.
func CaptionMetrics(frameWidth int) (fontSize, stroke, inset int) {
	fontSize = frameWidth / fontSizeDivisor
	stroke = fontSize / strokeDivisor
	inset = stroke * insetPerStroke
	return fontSize, stroke, inset
}

// drawCaption writes text in white with a black outline, its top-left corner
// at (inset, inset). Frames too narrow for a 1px font are left untouched.
func (t *ImageTransformer) drawCaption(dst *image.NRGBA, text string) error {
	fontSize, stroke, inset := CaptionMetrics(dst.Bounds().Dx())
	if fontSize < 1 || text == "" {
		return nil
	}

	face, err := opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    float64(fontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to create font face: %w", err)
	}
	defer face.Close()

	// Dot is the baseline origin; shift down by the ascent so the glyph tops
	// sit on the inset line.
	origin := fixed.Point26_6{
		X: fixed.I(inset),
		Y: fixed.I(inset) + face.Metrics().Ascent,
	}

	drawer := &font.Drawer{Dst: dst, Src: image.Black, Face: face}
	if stroke > 0 {
		for dy := -stroke; dy <= stroke; dy++ {
			for dx := -stroke; dx <= stroke; dx++ {
				if dx*dx+dy*dy > stroke*stroke {
					continue
				}
				drawer.Dot = origin.Add(fixed.P(dx, dy))
				drawer.DrawString(text)
			}
		}
	}

	drawer.Src = image.White
	drawer.Dot = origin
	drawer.DrawString(text)
	return nil
}
