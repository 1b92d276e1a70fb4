// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/opentrusty/orgkeeper/internal/config"
	"github.com/opentrusty/orgkeeper/internal/store"
	"github.com/spf13/cobra"
)

// clean-db removes every organization, admin and namespace from the
// configured store. Development use only.
func main() {
	var yes bool

	cmd := &cobra.Command{
		Use:          "clean-db",
		Short:        "Delete all organizations, admins and namespaces",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to wipe the store without --yes")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			backend, err := store.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer backend.Close(context.Background())

			fmt.Printf("Cleaning %s store...\n", backend.Driver)
			if err := backend.Reset(ctx); err != nil {
				return err
			}
			fmt.Println("Store cleaned.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of all data")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
