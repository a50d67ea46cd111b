/*
 * blobvault: a content-addressable blob store
 * Copyright (C) 2016-2025 SUSE LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"encoding/json"
	"fmt"
	"os"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var statCommand = cli.Command{
	Name:  "stat",
	Usage: "displays blob and byte counts for the store",

	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "json",
			Usage: "output the stat information as a JSON encoded blob",
		},
	},

	Action: stat,
}

type statOutput struct {
	BlobCount int64            `json:"blobCount"`
	ByteCount int64            `json:"byteCount"`
	Metrics   map[string]int64 `json:"metrics"`
}

func stat(ctx *cli.Context) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	out := statOutput{
		BlobCount: store.BlobCount(),
		ByteCount: store.ByteCount(),
		Metrics:   store.Metrics(),
	}

	if ctx.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(out), "encode stat output")
	}

	fmt.Fprintf(os.Stdout, "blobs: %d\n", out.BlobCount)
	fmt.Fprintf(os.Stdout, "size:  %s (%d bytes)\n", units.HumanSize(float64(out.ByteCount)), out.ByteCount)
	return nil
}
