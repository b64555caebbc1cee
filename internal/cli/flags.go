package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/trainwatch/internal/errors"
)

// overrideInt copies flag name into dst when the user set it.
func overrideInt(cmd *cobra.Command, name string, dst *int) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// overrideString copies flag name into dst when the user set it.
func overrideString(cmd *cobra.Command, name string, dst *string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// overrideDuration copies flag name into dst when the user set it.
func overrideDuration(cmd *cobra.Command, name string, dst *time.Duration) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// validateEpochs rejects an --epochs value the service would refuse.
func validateEpochs(n int) error {
	if n < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--epochs must be at least 1, got %d", n),
			"Try --epochs 3.")
	}
	return nil
}
