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

	"github.com/apex/log"
	"github.com/urfave/cli"

	"github.com/cyphar/blobvault/digestalgo"
)

var version = ""
var gitCommit = ""

const usage = `blobvault is a content-addressable local-disk blob store`

func main() {
	app := cli.NewApp()
	app.Name = "blobvault"
	app.Usage = usage
	app.Authors = []cli.Author{
		{Name: "Aleksa Sarai", Email: "asarai@suse.com"},
	}

	v := "unknown"
	if version != "" {
		v = version
	}
	if gitCommit != "" {
		v = fmt.Sprintf("%s~git%s", v, gitCommit)
	}
	app.Version = v

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "set log level to debug",
		},
		cli.StringFlag{
			Name:  "root",
			Usage: "path to the store's root directory",
			Value: ".blobvault",
		},
		cli.StringFlag{
			Name:  "algorithm",
			Usage: fmt.Sprintf("digest algorithm (%s, %s, %s, %s, %s)", digestalgo.MD5, digestalgo.SHA1, digestalgo.SHA256, digestalgo.SHA384, digestalgo.SHA512),
			Value: string(digestalgo.SHA256),
		},
		cli.IntFlag{
			Name:  "max-per-dir",
			Usage: "maximum number of blobs per directory before the hierarchy descends a level",
			Value: 254,
		},
	}

	app.Before = func(ctx *cli.Context) error {
		if ctx.GlobalBool("debug") {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}

	app.Commands = []cli.Command{
		addCommand,
		getCommand,
		deleteCommand,
		statCommand,
		cleanCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("blobvault")
		os.Exit(1)
	}
}
