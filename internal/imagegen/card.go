package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/lox/sunburntimer/internal/burn"
	"github.com/lox/sunburntimer/internal/tz"
)

// CardWidth and CardHeight are the Open Graph image dimensions.
const (
	CardWidth  = 1200
	CardHeight = 630
)

var (
	fontTitle   font.Face
	fontRegular font.Face
	fontSmall   font.Face
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse bold: %w", err)
			return
		}
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse regular: %w", err)
			return
		}

		faces := []struct {
			dst  *font.Face
			src  *opentype.Font
			size float64
		}{
			{&fontTitle, bold, 72},
			{&fontRegular, regular, 34},
			{&fontSmall, regular, 24},
		}
		for _, f := range faces {
			*f.dst, err = opentype.NewFace(f.src, &opentype.FaceOptions{
				Size:    f.size,
				DPI:     72,
				Hinting: font.HintingFull,
			})
			if err != nil {
				fontErr = fmt.Errorf("create %.0fpt face: %w", f.size, err)
				return
			}
		}
	})
}

// CardData is everything drawn on a share card.
type CardData struct {
	Location string
	Timezone string
	Now      time.Time
	Skin     burn.SkinType
	SPF      burn.SPFLevel
	Result   burn.Result
}

// BurnLabel is the headline for a result: time until burn, or that none is expected.
func BurnLabel(now time.Time, burnTime *time.Time) string {
	if burnTime == nil {
		return "No burn expected"
	}
	d := burnTime.Sub(now).Round(time.Minute)
	if d <= 0 {
		return "Burning now"
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("Burn in %dm", m)
	}
	return fmt.Sprintf("Burn in %dh %dm", h, m)
}

// PeakUV is the highest UV index across the result's points.
func PeakUV(res burn.Result) float64 {
	peak := 0.0
	for _, p := range res.Points {
		peak = math.Max(peak, p.UVIndex)
	}
	return peak
}

var bandColors = map[UVBand]color.RGBA{
	BandLow:      {46, 125, 50, 255},
	BandModerate: {249, 168, 37, 255},
	BandHigh:     {239, 108, 0, 255},
	BandVeryHigh: {198, 40, 40, 255},
	BandExtreme:  {106, 27, 154, 255},
}

// RenderCard draws a PNG card. A nil backdrop falls back to a gradient in the peak UV colour.
func RenderCard(backdrop []byte, data CardData) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	dst := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	band := BandFor(PeakUV(data.Result))

	if backdrop != nil {
		src, _, err := image.Decode(bytes.NewReader(backdrop))
		if err != nil {
			return nil, fmt.Errorf("decode backdrop: %w", err)
		}
		drawCover(dst, src)
	} else {
		drawGradient(dst, bandColors[band])
	}
	drawGradientOverlay(dst)
	drawDamageCurve(dst, data.Result)
	drawTextOverlay(dst, data, band)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

// drawCover scales src to fill dst, cropping the overflow around the centre.
func drawCover(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	scale := math.Max(float64(CardWidth)/float64(sb.Dx()), float64(CardHeight)/float64(sb.Dy()))
	cropW := int(float64(CardWidth) / scale)
	cropH := int(float64(CardHeight) / scale)
	x0 := sb.Min.X + (sb.Dx()-cropW)/2
	y0 := sb.Min.Y + (sb.Dy()-cropH)/2
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+cropW, y0+cropH), xdraw.Src, nil)
}

func drawGradient(img *image.RGBA, base color.RGBA) {
	for y := 0; y < CardHeight; y++ {
		k := 0.35 + 0.65*(1-float64(y)/float64(CardHeight))
		c := color.RGBA{uint8(float64(base.R) * k), uint8(float64(base.G) * k), uint8(float64(base.B) * k), 255}
		for x := 0; x < CardWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawGradientOverlay darkens the lower part of the image for text readability.
func drawGradientOverlay(img *image.RGBA) {
	bounds := img.Bounds()
	gradientHeight := 300

	for y := bounds.Max.Y - gradientHeight; y < bounds.Max.Y; y++ {
		progress := float64(y-(bounds.Max.Y-gradientHeight)) / float64(gradientHeight)
		alpha := progress * progress * 0.85

		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			orig := img.RGBAAt(x, y)
			orig.R = uint8(float64(orig.R) * (1 - alpha))
			orig.G = uint8(float64(orig.G) * (1 - alpha))
			orig.B = uint8(float64(orig.B) * (1 - alpha))
			img.SetRGBA(x, y, orig)
		}
	}
}

// Chart area for the cumulative damage curve.
var chartRect = image.Rect(640, 60, 1140, 360)

func drawDamageCurve(img *image.RGBA, res burn.Result) {
	panel := color.RGBA{0, 0, 0, 90}
	xdraw.Draw(img, chartRect, image.NewUniform(panel), image.Point{}, xdraw.Over)

	if len(res.Points) == 0 {
		return
	}

	top := math.Max(burn.DamageThreshold, res.FinalDamage())
	n := len(res.Points)
	toXY := func(i int, damage float64) (float64, float64) {
		x := float64(chartRect.Min.X) + float64(i)/float64(n)*float64(chartRect.Dx())
		y := float64(chartRect.Max.Y) - damage/top*float64(chartRect.Dy())
		return x, y
	}

	// Threshold line.
	_, ty := toXY(0, burn.DamageThreshold)
	for x := chartRect.Min.X; x < chartRect.Max.X; x += 12 {
		for dx := 0; dx < 6 && x+dx < chartRect.Max.X; dx++ {
			img.SetRGBA(x+dx, int(ty), color.RGBA{255, 255, 255, 200})
		}
	}

	line := color.RGBA{255, 213, 79, 255}
	px, py := toXY(0, res.Points[0].CumulativeBefore)
	for i, p := range res.Points {
		x, y := toXY(i+1, p.CumulativeAfter())
		drawLine(img, px, py, x, y, 3, line)
		px, py = x, y
	}
}

// drawLine plots a thick segment by stamping squares along it.
func drawLine(img *image.RGBA, x0, y0, x1, y1 float64, width int, c color.RGBA) {
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))) + 1
	half := width / 2
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		x := int(math.Round(x0 + (x1-x0)*t))
		y := int(math.Round(y0 + (y1-y0)*t))
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				if image.Pt(x+dx, y+dy).In(img.Bounds()) {
					img.SetRGBA(x+dx, y+dy, c)
				}
			}
		}
	}
}

func drawTextOverlay(img *image.RGBA, data CardData, band UVBand) {
	white := color.RGBA{255, 255, 255, 255}
	lightGray := color.RGBA{220, 220, 220, 255}

	drawText(img, BurnLabel(data.Now, data.Result.BurnTime), 60, 140, white, fontTitle)

	if data.Result.BurnTime != nil {
		at := data.Result.BurnTime.In(tz.Location(data.Timezone))
		drawText(img, "at "+at.Format("3:04 PM"), 60, 200, lightGray, fontRegular)
	}

	spf := burn.SPFLevels[data.SPF].Label
	if data.SPF == burn.SPFNone || spf == "" {
		spf = "No sunscreen"
	}
	detail := fmt.Sprintf("Skin type %s  |  %s", data.Skin, spf)
	drawText(img, detail, 60, CardHeight-150, lightGray, fontRegular)

	if data.Location != "" {
		drawText(img, data.Location, 60, CardHeight-100, white, fontRegular)
	}

	drawText(img, fmt.Sprintf("Peak UV %.1f (%s)", PeakUV(data.Result), band), 60, CardHeight-50, lightGray, fontSmall)
	drawText(img, "sunburntimer", CardWidth-60-textWidth("sunburntimer", fontSmall), CardHeight-50, lightGray, fontSmall)
}

func textWidth(text string, face font.Face) int {
	return font.MeasureString(face, text).Round()
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
