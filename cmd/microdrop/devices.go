package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petems/microdrop/internal/audio"
	"github.com/petems/microdrop/internal/config"
	"github.com/petems/microdrop/internal/dsp"
	"github.com/petems/microdrop/internal/wavfile"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices and the capture format each would use",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

var convertCmd = &cobra.Command{
	Use:   "convert <in.wav> <out.wav>",
	Short: "Downmix and resample a WAV file to 16 kHz mono",
	Args:  cobra.ExactArgs(2),
	RunE:  runConvert,
}

func runDevices(cmd *cobra.Command, _ []string) error {
	_, log, err := setup(config.Overrides{})
	if err != nil {
		return err
	}

	provider, err := audio.NewPortAudio()
	if err != nil {
		return err
	}
	defer provider.Close()

	devices, err := provider.InputDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No input devices found.")
		return nil
	}

	manager := audio.NewStreamManager(provider, 0, log)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tDEVICE\tCHANNELS\tCAPTURE FORMAT")
	for _, dev := range devices {
		marker := ""
		if dev.Default {
			marker = "*"
		}
		format := "unsupported"
		if err := manager.SelectDevice(dev.Name); err == nil {
			if err := manager.NegotiateConfig(); err == nil {
				if cfg, ok := manager.Config(); ok {
					format = cfg.String()
				}
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", marker, dev.Name, dev.MaxInputChannels, format)
	}
	return w.Flush()
}

func runConvert(cmd *cobra.Command, args []string) error {
	if _, _, err := setup(config.Overrides{}); err != nil {
		return err
	}

	clip, err := wavfile.Read(args[0])
	if err != nil {
		return err
	}

	proc, err := dsp.NewProcessor(clip.SampleRate, clip.Channels)
	if err != nil {
		return err
	}
	samples, err := proc.ProcessAll(clip.Samples)
	if err != nil {
		return err
	}

	out := wavfile.Clip{Samples: samples, SampleRate: dsp.TargetSampleRate, Channels: dsp.TargetChannels}
	if err := wavfile.Write(args[1], out); err != nil {
		return err
	}

	fmt.Printf("Converted %s (%d Hz x %d ch, %.2fs) -> %s (%d Hz mono, %.2fs)\n",
		args[0], clip.SampleRate, clip.Channels, clip.Seconds(),
		args[1], out.SampleRate, out.Seconds())
	return nil
}
