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

var deleteCommand = cli.Command{
	Name:      "delete",
	Usage:     "delete a blob from the store",
	ArgsUsage: `<id>`,

	Action: deleteBlob,
}

func deleteBlob(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return errors.New("delete: missing <id> argument")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	removed, err := store.Delete(id)
	if err != nil {
		return errors.Wrap(err, "delete blob")
	}
	if !removed {
		return errors.Errorf("delete: no such blob: %s", id)
	}

	fmt.Fprintf(os.Stdout, "deleted %s\n", id)
	return nil
}
