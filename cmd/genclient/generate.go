package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"genstudio/internal/client"
)

var (
	imagePath    string
	prompt       string
	style        string
	retryDelay   time.Duration
	wait         bool
	pollInterval time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Submit an image and prompt, retrying while the model is overloaded",
	Long: `Submit an image and prompt. Overloaded responses are retried up to three
times. Ctrl-C cancels the attempt, including any pending retry.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&imagePath, "image", "i", "", "JPEG or PNG file to upload")
	generateCmd.Flags().StringVar(&prompt, "prompt", "", "text prompt")
	generateCmd.Flags().StringVar(&style, "style", "realistic", "realistic, artistic, cartoon or vintage")
	generateCmd.Flags().DurationVar(&retryDelay, "retry-delay", client.DefaultRetryDelay, "wait between overload retries")
	generateCmd.Flags().BoolVarP(&wait, "wait", "w", true, "poll until the generation finishes")
	generateCmd.Flags().DurationVar(&pollInterval, "poll", time.Second, "poll interval while waiting")
	rootCmd.AddCommand(generateCmd)
}

func loadImage(path string) (client.GenerationInput, error) {
	if path == "" {
		return client.GenerationInput{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return client.GenerationInput{}, fmt.Errorf("read image: %w", err)
	}
	return client.GenerationInput{
		ImageName:   filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Image:       data,
	}, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	in, err := loadImage(imagePath)
	if err != nil {
		return err
	}
	in.Prompt, in.Style = prompt, style

	c, err := authedClient(cmd.Context())
	if err != nil {
		return err
	}

	ctrl := client.NewController(c)
	ctrl.RetryDelay = retryDelay
	ctrl.OnChange = func(s client.Snapshot) {
		if s.Message != "" {
			fmt.Fprintf(out, "[%s] %s\n", s.State, s.Message)
		} else {
			fmt.Fprintf(out, "[%s]\n", s.State)
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	done, err := ctrl.Submit(in)
	if err != nil {
		return err
	}
	select {
	case <-done:
	case <-sigs:
		ctrl.Cancel()
		<-done
		fmt.Fprintln(out, "cancelled")
		return nil
	}

	snap := ctrl.Snapshot()
	if snap.Generation == nil {
		if snap.Err != nil {
			return snap.Err
		}
		return errors.New(snap.Message)
	}
	fmt.Fprintf(out, "generation %s is %s\n", snap.Generation.ID, snap.Generation.Status)
	if !wait {
		return nil
	}

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()
	go func() {
		select {
		case <-sigs:
			stop()
		case <-ctx.Done():
		}
	}()
	final, err := waitTerminal(ctx, c, snap.Generation.ID, pollInterval)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "stopped waiting; the generation keeps running on the server")
		return nil
	}
	if err != nil {
		return err
	}
	printGenerations(out, []client.Generation{*final})
	return nil
}
