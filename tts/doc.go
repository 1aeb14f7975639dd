// Package tts turns text into speech audio.
//
// The only provider is ElevenLabs. Callers depend on the Service interface
// so tests can substitute a fake:
//
//	svc := tts.NewElevenLabs(apiKey)
//	audio, err := svc.Synthesize(ctx, "Hello there", tts.SynthesisConfig{Voice: voiceID})
//	if err != nil {
//		return err
//	}
//	defer audio.Close()
package tts
