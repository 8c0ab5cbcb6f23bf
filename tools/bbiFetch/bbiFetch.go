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

import   "bufio"
import   "fmt"
import   "os"
import   "strconv"
import   "strings"

import   "github.com/pborman/getopt"
import   "github.com/sirupsen/logrus"

import . "github.com/pbenner/gobbi"

/* -------------------------------------------------------------------------- */

type Config struct {
  Verbose   int
  Options   FetchOptions
  Intervals bool
  Summaries int
}

/* -------------------------------------------------------------------------- */

func PrintStderr(config Config, level int, format string, args ...interface{}) {
  if config.Verbose >= level {
    fmt.Fprintf(os.Stderr, format, args...)
  }
}

/* -------------------------------------------------------------------------- */

func parseFloat(str string) float64 {
  v, err := strconv.ParseFloat(str, 64)
  if err != nil {
    logrus.Fatalf("parsing `%s' failed: %v", str, err)
  }
  return v
}

func parseInt(str string) int {
  v, err := strconv.ParseInt(str, 10, 64)
  if err != nil {
    logrus.Fatalf("parsing `%s' failed: %v", str, err)
  }
  return int(v)
}

/* -------------------------------------------------------------------------- */

func fetchValues(config Config, bwf *BbiFile, seqname string, from, to int) {
  values, err := bwf.Fetch(seqname, from, to, config.Options)
  if err != nil {
    logrus.Fatal(err)
  }
  writer := bufio.NewWriter(os.Stdout)
  defer writer.Flush()

  for _, value := range values {
    fmt.Fprintf(writer, "%f\n", value)
  }
}

func fetchIntervals(config Config, bwf *BbiFile, seqname string, from, to int) {
  intervals, err := bwf.FetchIntervals(seqname, from, to)
  if err != nil {
    logrus.Fatal(err)
  }
  writer := bufio.NewWriter(os.Stdout)
  defer writer.Flush()

  for _, interval := range intervals {
    if len(interval.Fields) > 0 {
      fmt.Fprintf(writer, "%s\t%d\t%d\t%s\n", interval.Chrom, interval.From, interval.To, strings.Join(interval.Fields, "\t"))
    } else
    if bwf.IsBigBed() {
      fmt.Fprintf(writer, "%s\t%d\t%d\n", interval.Chrom, interval.From, interval.To)
    } else {
      fmt.Fprintf(writer, "%s\t%d\t%d\t%f\n", interval.Chrom, interval.From, interval.To, interval.Value)
    }
  }
}

func fetchSummaries(config Config, bwf *BbiFile, seqname string, from, to int) {
  records, err := bwf.FetchSummaries(seqname, from, to, config.Summaries)
  if err != nil {
    logrus.Fatal(err)
  }
  writer := bufio.NewWriter(os.Stdout)
  defer writer.Flush()

  for _, record := range records {
    s := record.Statistics()
    fmt.Fprintf(writer, "%s\t%d\t%d\t%.0f\t%f\t%f\t%f\t%f\n",
      seqname, record.Start, record.End, s.Valid, s.Min, s.Max, s.Sum, s.SumSquares)
  }
}

/* -------------------------------------------------------------------------- */

func fetch(config Config, pathOrUrl, seqname string, from, to int) {
  PrintStderr(config, 1, "Opening `%s'... ", pathOrUrl)
  bwf, err := OpenBbiFile(pathOrUrl)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    logrus.Fatal(err)
  }
  PrintStderr(config, 1, "done\n")
  defer bwf.Close()

  switch {
  case config.Intervals:
    fetchIntervals(config, bwf, seqname, from, to)
  case config.Summaries >= 0:
    fetchSummaries(config, bwf, seqname, from, to)
  default:
    fetchValues(config, bwf, seqname, from, to)
  }
}

/* -------------------------------------------------------------------------- */

func main() {
  config        := Config{}
  config.Options = DefaultFetchOptions()

  options := getopt.New()

  optBins      := options.    IntLong("bins",       0 ,    -1, "number of bins [default: one value per base]")
  optSummary   := options. StringLong("summary",    0 ,"mean", "summary statistic [mean (default), max, min, cov, std, sum]")
  optMissing   := options. StringLong("missing",    0 ,   "0", "fill value for bins without data [default: 0]")
  optOob       := options. StringLong("oob",        0 , "nan", "fill value for out-of-bounds positions [default: nan]")
  optExact     := options.   BoolLong("exact",      0 ,        "aggregate from full resolution data")
  optIntervals := options.   BoolLong("intervals",  0 ,        "print stored intervals instead of values")
  optSummaries := options.    IntLong("summaries",  0 ,    -1, "print summary records of the given zoom level")
  optHelp      := options.   BoolLong("help",      'h',        "print help")
  optVerbose   := options.CounterLong("verbose",   'v',        "be verbose")

  options.SetParameters("<input.bw|input.bb> <chrom> <start> <end>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) != 4 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  config.Verbose         = *optVerbose
  config.Intervals       = *optIntervals
  config.Summaries       = *optSummaries
  config.Options.Bins    = *optBins
  config.Options.Summary = *optSummary
  config.Options.Missing =  parseFloat(*optMissing)
  config.Options.Oob     =  parseFloat(*optOob)
  config.Options.Exact   = *optExact

  pathOrUrl := options.Args()[0]
  seqname   := options.Args()[1]
  from      := parseInt(options.Args()[2])
  to        := parseInt(options.Args()[3])

  fetch(config, pathOrUrl, seqname, from, to)
}
