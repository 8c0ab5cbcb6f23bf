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
}

/* -------------------------------------------------------------------------- */

func PrintStderr(config Config, level int, format string, args ...interface{}) {
  if config.Verbose >= level {
    fmt.Fprintf(os.Stderr, format, args...)
  }
}

/* -------------------------------------------------------------------------- */

func getFileGenome(config Config, pathOrUrl string) {
  PrintStderr(config, 1, "Opening `%s'... ", pathOrUrl)
  bwf, err := OpenBbiFile(pathOrUrl)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    logrus.Fatal(err)
  }
  PrintStderr(config, 1, "done\n")
  defer bwf.Close()

  fmt.Println(bwf.Chromsizes())
}

func getUcscGenome(config Config, assembly string) {
  PrintStderr(config, 1, "Importing genome `%s' from UCSC... ", assembly)
  genome, err := ImportGenomeFromUCSC(assembly)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    logrus.Fatal(err)
  }
  PrintStderr(config, 1, "done\n")

  fmt.Println(genome)
}

// Compare the chromosome table of a file against the given UCSC
// assembly and report all mismatches.
func compareGenomes(config Config, pathOrUrl, assembly string) {
  PrintStderr(config, 1, "Opening `%s'... ", pathOrUrl)
  bwf, err := OpenBbiFile(pathOrUrl)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    logrus.Fatal(err)
  }
  PrintStderr(config, 1, "done\n")
  defer bwf.Close()

  PrintStderr(config, 1, "Importing genome `%s' from UCSC... ", assembly)
  reference, err := ImportGenomeFromUCSC(assembly)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    logrus.Fatal(err)
  }
  PrintStderr(config, 1, "done\n")

  genome     := bwf.Chromsizes()
  mismatches := 0
  for i, seqname := range genome.Seqnames {
    size := reference.SeqSize(seqname)
    switch {
    case size == 0:
      fmt.Printf("%s\tmissing in %s\n", seqname, assembly)
      mismatches++
    case size != genome.Lengths[i]:
      fmt.Printf("%s\tsize %d differs from %d in %s\n", seqname, genome.Lengths[i], size, assembly)
      mismatches++
    }
  }
  if mismatches > 0 {
    os.Exit(2)
  }
  PrintStderr(config, 1, "Chromosome tables match\n")
}

/* -------------------------------------------------------------------------- */

func main() {
  config  := Config{}

  options := getopt.New()

  optUcsc    := options. StringLong("ucsc",    0 , "", "compare against the given UCSC assembly, or print its chromosome sizes if no file is given")
  optHelp    := options.   BoolLong("help",   'h',     "print help")
  optVerbose := options.CounterLong("verbose",'v',     "be verbose")

  options.SetParameters("[<input.bw|input.bb>]")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  config.Verbose = *optVerbose

  switch {
  case *optUcsc != "" && len(options.Args()) == 1:
    compareGenomes(config, options.Args()[0], *optUcsc)
  case *optUcsc != "" && len(options.Args()) == 0:
    getUcscGenome(config, *optUcsc)
  case len(options.Args()) == 1:
    getFileGenome(config, options.Args()[0])
  default:
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
}
