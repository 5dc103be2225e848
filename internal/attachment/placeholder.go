package attachment

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"unicode"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	avatarSize  = 128
	glyphScale  = 6
	avatarDays  = 36500
	avatarCache = "avatar:"
)

var avatarPalette = []color.RGBA{
	{0x1e, 0x88, 0xe5, 0xff},
	{0x43, 0xa0, 0x47, 0xff},
	{0xf4, 0x51, 0x1e, 0xff},
	{0x8e, 0x24, 0xaa, 0xff},
	{0x00, 0x89, 0x7b, 0xff},
	{0x6d, 0x4c, 0x41, 0xff},
	{0x39, 0x49, 0xab, 0xff},
	{0xc0, 0x18, 0x5d, 0xff},
}

// Placeholder renders a circular avatar for style and returns its cached path.
// style is "text[,foreground[,background]]" with hex colours; the same style
// always yields the same image.
func (f *Fetcher) Placeholder(style string) (string, error) {
	text, fg, bg := parseAvatarStyle(style)
	key := fmt.Sprintf("%s%s|%02x%02x%02x|%02x%02x%02x", avatarCache, text, fg.R, fg.G, fg.B, bg.R, bg.G, bg.B)

	if p, ok := f.Lookup(key, avatarDays); ok {
		return p, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, renderAvatar(text, fg, bg)); err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}
	return f.Store(key, buf.Bytes())
}

func parseAvatarStyle(style string) (string, color.RGBA, color.RGBA) {
	parts := strings.SplitN(style, ",", 3)
	text := strings.TrimSpace(parts[0])

	fg := color.RGBA{0xff, 0xff, 0xff, 0xff}
	if len(parts) > 1 {
		if c, ok := parseHexColor(parts[1]); ok {
			fg = c
		}
	}

	bg := paletteColor(text)
	if len(parts) > 2 {
		if c, ok := parseHexColor(parts[2]); ok {
			bg = c
		}
	}
	return text, fg, bg
}

func paletteColor(text string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return avatarPalette[h.Sum32()%uint32(len(avatarPalette))]
}

func parseHexColor(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}, true
}

func initial(text string) string {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return string(unicode.ToUpper(r))
		}
	}
	return "?"
}

func renderAvatar(text string, fg, bg color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, avatarSize, avatarSize))

	r := avatarSize / 2
	for y := 0; y < avatarSize; y++ {
		for x := 0; x < avatarSize; x++ {
			dx, dy := x-r, y-r
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, bg)
			}
		}
	}

	face := basicfont.Face7x13
	glyph := image.NewRGBA(image.Rect(0, 0, face.Advance, face.Height))
	d := &font.Drawer{
		Dst:  glyph,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(initial(text))

	w, h := face.Advance*glyphScale, face.Height*glyphScale
	dst := image.Rect((avatarSize-w)/2, (avatarSize-h)/2, (avatarSize+w)/2, (avatarSize+h)/2)
	xdraw.NearestNeighbor.Scale(img, dst, glyph, glyph.Bounds(), xdraw.Over, nil)

	return img
}
