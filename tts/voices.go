package tts

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
)

// DefaultVoices maps friendly names to ElevenLabs voice IDs.
var DefaultVoices = Voices{
	"grandpa": "NOpBlnGInO9m6vDvFkFC",
}

// Voices maps friendly voice names to provider voice IDs.
type Voices map[string]string

// Names returns the voice names in sorted order.
func (v Voices) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pick resolves name to a voice ID. An empty name picks a random voice
// using rng. The returned name is the one actually chosen.
func (v Voices) Pick(name string, rng *rand.Rand) (voiceName, voiceID string, err error) {
	if len(v) == 0 {
		return "", "", fmt.Errorf("%w: no voices configured", ErrInvalidVoice)
	}
	if name != "" {
		id, ok := v[name]
		if !ok {
			return "", "", fmt.Errorf("%w: %q (choose from %s)", ErrInvalidVoice, name, strings.Join(v.Names(), ", "))
		}
		return name, id, nil
	}
	names := v.Names()
	pick := names[rng.IntN(len(names))]
	return pick, v[pick], nil
}

// Merge returns a copy of v with extra's entries added or overriding.
func (v Voices) Merge(extra map[string]string) Voices {
	out := make(Voices, len(v)+len(extra))
	for k, id := range v {
		out[k] = id
	}
	for k, id := range extra {
		if k = strings.TrimSpace(k); k != "" && id != "" {
			out[k] = id
		}
	}
	return out
}

// PickVoice resolves name against DefaultVoices.
func PickVoice(name string, rng *rand.Rand) (voiceName, voiceID string, err error) {
	return DefaultVoices.Pick(name, rng)
}

// Contains reports whether name is a configured voice.
func (v Voices) Contains(name string) bool {
	_, ok := v[name]
	return ok
}
