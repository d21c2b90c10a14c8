package images

var textureTypes = []string{
	"grainy", "soft grainy", "noisy", "film grain", "textured",
	"granular", "sandy textured", "dusty", "matte grainy", "powder texture",
}

var styles = []string{
	"fluid gradient", "color field", "gradient blend", "soft focus gradient",
	"diffused color wash", "atmospheric gradient", "hazy color field",
	"nebula-like gradient", "dreamy gradient", "ethereal blend",
}

var colorCombos = []string{
	"neon yellow and deep purple", "hot pink and turquoise", "coral pink and mustard yellow",
	"lime green and violet", "cyan and coral", "magenta and chartreuse",
	"pastel pink and butter yellow", "electric blue and peach", "mint green and lavender",
	"tangerine and fuchsia", "lemon yellow and rose pink", "teal and salmon",
	"lilac and golden yellow", "bubblegum pink and sky blue", "acid green and plum purple",
}

var gradientPatterns = []string{
	"flowing organic shapes", "soft billowing forms", "smooth diagonal sweep",
	"circular radial blur", "layered color waves", "intersecting color clouds",
	"angular color blocks with soft edges", "swirling misty forms",
	"horizontal bands with bleed", "vertical color drift",
}

var grainDetails = []string{
	"heavy film grain texture", "fine particle noise", "medium grain overlay",
	"coarse sandy texture", "subtle noise pattern", "visible pixel grain",
	"dusty matte finish", "chalky textured surface", "soft focus grain", "vintage film texture",
}

var atmospheres = []string{
	"soft diffused lighting", "hazy atmospheric depth", "dreamy out of focus",
	"ethereal glow", "muted luminosity", "gentle color bleed",
	"foggy ambiance", "soft bokeh effect", "translucent layers", "misty color transition",
}

var compositions = []string{
	"asymmetric balance", "centered composition", "diagonal flow",
	"corner-to-corner movement", "layered depth", "floating color shapes",
	"overlapping gradients", "edge-to-edge blend", "concentrated center fade", "scattered color pools",
}

var finishes = []string{
	"minimalist aesthetic", "contemporary abstract art", "modern gradient design",
	"soft artistic blur", "painterly texture", "analog photography feel",
	"retro color treatment", "organic art style", "meditative color field", "zen minimalism",
}

// lcg is the fixed linear congruential generator behind prompt selection.
// The parameters are part of the data model: a stored seed must keep
// producing the same prompt across versions, so this never changes.
type lcg struct {
	state int64
}

func newLCG(seed int64) *lcg {
	if seed < 0 {
		seed = -seed
	}
	return &lcg{state: seed}
}

func (l *lcg) next() float64 {
	l.state = (l.state*1103515245 + 12345) & 0x7fffffff
	return float64(l.state) / float64(0x7fffffff)
}

func (l *lcg) pick(options []string) string {
	return options[int(l.next()*float64(len(options)))]
}

// GeneratePrompt produces the abstract-art prompt for an article's cover
// image. Deterministic per seed, so regenerating an image gives the same
// artwork.
func GeneratePrompt(seed int64) string {
	rng := newLCG(seed)

	textureType := rng.pick(textureTypes)
	style := rng.pick(styles)
	colorCombo := rng.pick(colorCombos)
	gradientPattern := rng.pick(gradientPatterns)
	grainDetail := rng.pick(grainDetails)
	atmosphere := rng.pick(atmospheres)
	composition := rng.pick(compositions)
	finish := rng.pick(finishes)

	return textureType + " abstract " + style + " with " + colorCombo + ", " +
		gradientPattern + ", " + grainDetail + ", " + atmosphere + ", " +
		composition + ", " + finish
}
