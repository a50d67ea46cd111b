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
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/cyphar/blobvault/digestalgo"
	"github.com/cyphar/blobvault/oci/cas"
)

// openStore opens the store named by the --root/--algorithm/--max-per-dir
// global flags, exactly as a caller embedding this package would.
func openStore(ctx *cli.Context) (*cas.Store, error) {
	root := ctx.GlobalString("root")
	algorithm := digestalgo.Algorithm(ctx.GlobalString("algorithm"))
	maxPerDir := ctx.GlobalInt("max-per-dir")

	store, err := cas.Open(root, algorithm, maxPerDir)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %q", root)
	}
	return store, nil
}
