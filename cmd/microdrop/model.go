package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petems/microdrop/internal/config"
	"github.com/petems/microdrop/internal/models"
)

var (
	installQuantized string
	installForce     bool
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage whisper models",
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached and downloadable models",
	Args:  cobra.NoArgs,
	RunE:  runModelList,
}

var modelInstallCmd = &cobra.Command{
	Use:   "install <model> [model...]",
	Short: "Download models into the cache",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runModelInstall,
}

func init() {
	modelInstallCmd.Flags().StringVar(&installQuantized, "quantized", "", "quantization: none, q4_0, q5_1, q8_0")
	modelInstallCmd.Flags().BoolVar(&installForce, "force", false, "download again even if cached")

	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelInstallCmd)
}

func runModelList(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(config.Overrides{})
	if err != nil {
		return err
	}

	mgr := models.NewManager(cfg.ModelsDir(), log)
	cached, err := mgr.ListCached()
	if err != nil {
		return err
	}

	if len(cached) == 0 {
		fmt.Println("No cached models found.")
		fmt.Println("Use 'microdrop model install <model>' to download models.")
	} else {
		fmt.Println("Cached models:")
		for _, c := range cached {
			fmt.Printf("  %s (%s)\n", c.Name, c.Quantization)
			fmt.Printf("    Path: %s\n", c.Path)
			fmt.Printf("    Size: %.1f MB\n", float64(c.Size)/(1<<20))
			fmt.Println()
		}
	}

	fmt.Println("Available models for download:")
	for _, m := range models.Available() {
		fmt.Printf("  %s (%s) - %d MB\n", m.Name, m.Quantization, m.SizeMB)
	}
	return nil
}

func runModelInstall(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(config.Overrides{})
	if err != nil {
		return err
	}
	q, err := models.ParseQuantization(installQuantized)
	if err != nil {
		return err
	}

	mgr := models.NewManager(cfg.ModelsDir(), log)
	installed, err := mgr.InstallAll(cmd.Context(), args, q, installForce)
	if err != nil {
		return err
	}

	for _, m := range installed {
		fmt.Printf("Model '%s' installed successfully!\n", m.Name)
		fmt.Printf("Path: %s\n", m.Path)
	}
	return nil
}
