package main

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/ayusman/mukha/internal/app"
)

// followCapture draws a progress bar of confirmed samples, described by
// the current instruction, until the returned func is called.
func followCapture(out io.Writer, preview *app.Preview, required int, label string) func() {
	bar := progressbar.NewOptions(required,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("samples"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionFullWidth(),
	)

	updates, unsubscribe := preview.Subscribe(32)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		last := ""
		for snap := range updates {
			if !snap.Active {
				continue
			}
			st := snap.Status
			if st.Instruction != "" && st.Instruction != last {
				last = st.Instruction
				bar.Describe(label + ": " + st.Instruction)
			}
			bar.Set(min(st.Samples, required))
		}
	}()

	return func() {
		unsubscribe()
		wg.Wait()
		bar.Finish()
		io.WriteString(out, "\n")
	}
}
