// Package prompts builds random image prompts for demo and smoke runs.
package prompts

import (
	"fmt"
	"math/rand/v2"
)

var subjects = []string{
	"a lobster piloting a vintage scooter",
	"a raccoon librarian in a tiny art-deco library",
	"a glass whale floating above a desert",
	"a moss-covered robot tending a bonsai garden",
	"a candlelit map room with impossible staircases",
	"a retro-futurist diner on the moon at dusk",
	"a hummingbird made of stained glass",
	"a porcelain teapot city in the clouds",
	"a midnight train station built inside a giant clock",
	"a tiny submarine exploring a glowing kelp forest",
	"a baroque observatory with brass telescopes and fog",
	"a koi pond shaped like a circuit board",
}

var styles = []string{
	"ultra-detailed studio photo",
	"35mm film still",
	"risograph poster",
	"oil painting on linen",
	"watercolor with ink linework",
	"isometric diorama",
	"mid-century editorial illustration",
	"high-end product shot",
}

var lighting = []string{
	"softbox lighting",
	"golden hour",
	"neon rim light",
	"overcast diffuse light",
	"candlelight with deep shadows",
	"dramatic chiaroscuro",
}

var palettes = []string{
	"copper + teal + cream",
	"cobalt + vermilion + bone",
	"sage + sand + charcoal",
	"magenta + midnight blue + silver",
}

// Subjects returns a copy of the built-in subject list.
func Subjects() []string {
	return append([]string(nil), subjects...)
}

// Random returns count prompts. Subjects are shuffled once and then cycled,
// so the first len(Subjects()) prompts never repeat a subject. A nil rng
// uses a randomly seeded source.
func Random(count int, rng *rand.Rand) []string {
	if count <= 0 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	order := Subjects()
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("%s of %s. Lighting: %s. Palette: %s. Crisp, no text, no watermark.",
			pick(rng, styles), order[i%len(order)], pick(rng, lighting), pick(rng, palettes))
	}
	return out
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}
