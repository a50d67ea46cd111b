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
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var addCommand = cli.Command{
	Name:      "add",
	Usage:     "add a blob to the store",
	ArgsUsage: `[<path>]`,
	Description: `Reads content from <path> (or stdin if omitted), stores it under its
digest, and prints the resulting identifier. Adding identical content twice
is a no-op: the second call returns the same identifier without storing a
second copy.`,

	Action: add,
}

func add(ctx *cli.Context) error {
	var src *os.File
	if path := ctx.Args().First(); path != "" {
		fh, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "open source file")
		}
		defer fh.Close() //nolint:errcheck
		src = fh
	} else {
		src = os.Stdin
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	blob, err := store.Add(src)
	if err != nil {
		return errors.Wrap(err, "add blob")
	}

	fmt.Fprintln(os.Stdout, blob.ID())
	return nil
}
