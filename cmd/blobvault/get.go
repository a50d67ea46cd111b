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
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var getCommand = cli.Command{
	Name:      "get",
	Usage:     "write a blob's content to stdout",
	ArgsUsage: `<id>`,

	Action: get,
}

func get(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return errors.New("get: missing <id> argument")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	blob, err := store.Get(id)
	if err != nil {
		return errors.Wrap(err, "get blob")
	}
	if blob == nil {
		return errors.Errorf("get: no such blob: %s", id)
	}

	rdr, err := blob.Open()
	if err != nil {
		return errors.Wrap(err, "open blob")
	}
	defer rdr.Close() //nolint:errcheck

	_, err = io.Copy(os.Stdout, rdr)
	return errors.Wrap(err, "write blob content")
}
