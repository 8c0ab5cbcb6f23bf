/* Copyright (C) 2020 Philipp Benner
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package main

/* -------------------------------------------------------------------------- */

import   "fmt"
import   "os"

import   "github.com/pborman/getopt"
import   "github.com/sirupsen/logrus"

import . "github.com/pbenner/gobbi"

/* -------------------------------------------------------------------------- */

type Config struct {
  Verbose int
  Chroms  bool
  Zooms   bool
  Schema  bool
}

/* -------------------------------------------------------------------------- */

func PrintStderr(config Config, level int, format string, args ...interface{}) {
  if config.Verbose >= level {
    fmt.Fprintf(os.Stderr, format, args...)
  }
}

/* -------------------------------------------------------------------------- */

func printInfo(config Config, pathOrUrl string) {
  PrintStderr(config, 1, "Opening `%s'... ", pathOrUrl)
  bwf, err := OpenBbiFile(pathOrUrl)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    logrus.Fatal(err)
  }
  PrintStderr(config, 1, "done\n")
  defer bwf.Close()

  info := bwf.Info()

  kind := "bigWig"
  if bwf.IsBigBed() {
    kind = "bigBed"
  }
  fmt.Printf("file             : %s\n", pathOrUrl)
  fmt.Printf("type             : %s\n", kind)
  fmt.Printf("version          : %d\n", info.Version)
  fmt.Printf("isCompressed     : %t\n", info.IsCompressed)
  fmt.Printf("isSwapped        : %t\n", info.IsSwapped)
  fmt.Printf("primaryDataSize  : %d\n", info.PrimaryDataSize)
  fmt.Printf("zoomLevels       : %d\n", info.ZoomLevels)
  fmt.Printf("chromCount       : %d\n", info.ChromCount)
  fmt.Printf("basesCovered     : %d\n", info.Summary.BasesCovered)
  fmt.Printf("mean             : %f\n", info.Summary.Mean)
  fmt.Printf("min              : %f\n", info.Summary.Min)
  fmt.Printf("max              : %f\n", info.Summary.Max)
  fmt.Printf("std              : %f\n", info.Summary.Std)

  if config.Zooms {
    fmt.Println()
    fmt.Println("zoom levels (bases per summary bin):")
    for i, reduction := range bwf.Zooms() {
      fmt.Printf("  %2d: %d\n", i, reduction)
    }
  }
  if config.Chroms {
    fmt.Println()
    fmt.Println("chromosome sizes:")
    fmt.Println(bwf.Chromsizes())
  }
  if config.Schema && bwf.IsBigBed() {
    schema, err := bwf.Schema()
    if err != nil {
      logrus.Fatal(err)
    }
    fmt.Println()
    fmt.Printf("schema `%s': %s\n", schema.Name, schema.Comment)
    for _, column := range schema.Columns {
      fmt.Printf("  %-12s %-12s %s\n", column.Name, column.Dtype(), column.Comment)
    }
  }
}

/* -------------------------------------------------------------------------- */

func main() {
  config  := Config{}

  options := getopt.New()

  optChroms  := options.   BoolLong("chroms",  0 , "print chromosome sizes")
  optZooms   := options.   BoolLong("zooms",   0 , "print zoom levels")
  optSchema  := options.   BoolLong("schema",  0 , "print bigBed schema")
  optHelp    := options.   BoolLong("help",   'h', "print help")
  optVerbose := options.CounterLong("verbose",'v', "be verbose")

  options.SetParameters("<input.bw|input.bb>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) != 1 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  config.Verbose = *optVerbose
  config.Chroms  = *optChroms
  config.Zooms   = *optZooms
  config.Schema  = *optSchema

  printInfo(config, options.Args()[0])
}
