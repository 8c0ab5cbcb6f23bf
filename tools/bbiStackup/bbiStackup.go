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
import   "math"
import   "os"
import   "strconv"
import   "strings"

import   "github.com/pbenner/threadpool"
import   "github.com/pborman/getopt"
import   "github.com/sirupsen/logrus"

import   "gonum.org/v1/gonum/stat"
import   "gonum.org/v1/plot"
import   "gonum.org/v1/plot/plotter"
import   "gonum.org/v1/plot/plotutil"
import   "gonum.org/v1/plot/vg"

import . "github.com/pbenner/gobbi"

/* -------------------------------------------------------------------------- */

type Config struct {
  Verbose int
  Options FetchOptions
  Threads int
  Plot    string
}

/* -------------------------------------------------------------------------- */

func PrintStderr(config Config, level int, format string, args ...interface{}) {
  if config.Verbose >= level {
    fmt.Fprintf(os.Stderr, format, args...)
  }
}

/* -------------------------------------------------------------------------- */

// Import regions from a bed file with at least three columns. Lines
// starting with track or browser and comment lines are skipped.
func importRegions(config Config, filename string) ([]string, []int, []int) {
  f, err := os.Open(filename)
  if err != nil {
    logrus.Fatal(err)
  }
  defer f.Close()

  seqnames := []string{}
  froms    := []int{}
  tos      := []int{}

  PrintStderr(config, 1, "Reading bed file `%s'... ", filename)
  scanner := bufio.NewScanner(f)
  for scanner.Scan() {
    line := strings.TrimSpace(scanner.Text())
    if line == "" || line[0] == '#' ||
       strings.HasPrefix(line, "track")   ||
       strings.HasPrefix(line, "browser") {
      continue
    }
    fields := strings.Fields(line)
    if len(fields) < 3 {
      PrintStderr(config, 1, "failed\n")
      logrus.Fatalf("invalid bed line `%s'", line)
    }
    from, err1 := strconv.Atoi(fields[1])
    to  , err2 := strconv.Atoi(fields[2])
    if err1 != nil || err2 != nil {
      PrintStderr(config, 1, "failed\n")
      logrus.Fatalf("invalid bed line `%s'", line)
    }
    seqnames = append(seqnames, fields[0])
    froms    = append(froms   , from)
    tos      = append(tos     , to)
  }
  if err := scanner.Err(); err != nil {
    PrintStderr(config, 1, "failed\n")
    logrus.Fatal(err)
  }
  PrintStderr(config, 1, "done\n")
  return seqnames, froms, tos
}

/* -------------------------------------------------------------------------- */

// Fetch all rows of the matrix. File handles must not be shared across
// threads, so every thread opens its own.
func stackup(config Config, pathOrUrl string, seqnames []string, froms, tos []int) [][]float64 {
  pool := threadpool.New(config.Threads, 100*config.Threads)

  handles := make([]*BbiFile, pool.NumberOfThreads())
  for i := 0; i < pool.NumberOfThreads(); i++ {
    bwf, err := OpenBbiFile(pathOrUrl)
    if err != nil {
      logrus.Fatal(err)
    }
    handles[i] = bwf
    defer bwf.Close()
  }
  // resolve open ends before checking region lengths
  for i := 0; i < len(tos); i++ {
    if tos[i] < 0 {
      if size := handles[0].ChromSize(seqnames[i]); size > 0 {
        tos[i] = size
      }
    }
  }
  if config.Options.Bins < 1 {
    for i := 1; i < len(seqnames); i++ {
      if tos[i]-froms[i] != tos[0]-froms[0] {
        logrus.Fatal("regions differ in length; use --bins to rescale them")
      }
    }
  }
  result := make([][]float64, len(seqnames))

  pool.RangeJob(0, len(seqnames), func(i int, pool threadpool.ThreadPool, erf func() error) error {
    bwf := handles[pool.GetThreadId()]

    row, err := bwf.Fetch(seqnames[i], froms[i], tos[i], config.Options)
    if err != nil {
      logrus.Fatal(err)
    }
    result[i] = row
    return nil
  })
  return result
}

/* -------------------------------------------------------------------------- */

// Mean over the rows of each column, ignoring NaN entries.
func columnMeans(matrix [][]float64) []float64 {
  if len(matrix) == 0 {
    return nil
  }
  means  := make([]float64, len(matrix[0]))
  column := make([]float64, 0, len(matrix))
  for j := 0; j < len(matrix[0]); j++ {
    column = column[0:0]
    for i := 0; i < len(matrix); i++ {
      if !math.IsNaN(matrix[i][j]) {
        column = append(column, matrix[i][j])
      }
    }
    if len(column) == 0 {
      means[j] = math.NaN()
    } else {
      means[j] = stat.Mean(column, nil)
    }
  }
  return means
}

func plotProfile(config Config, matrix [][]float64, filename string) {
  means := columnMeans(matrix)

  xy := make(plotter.XYs, len(means))
  for j := 0; j < len(means); j++ {
    xy[j].X = float64(j)
    xy[j].Y = means[j]
  }
  p := plot.New()
  p.Title.Text   = ""
  p.X.Label.Text = "bin"
  p.Y.Label.Text = config.Options.Summary

  if err := plotutil.AddLines(p, xy); err != nil {
    logrus.Fatal(err)
  }
  if err := p.Save(8*vg.Inch, 4*vg.Inch, filename); err != nil {
    logrus.Fatal(err)
  }
  PrintStderr(config, 1, "Wrote profile plot to `%s'\n", filename)
}

/* -------------------------------------------------------------------------- */

func exportTable(config Config, matrix [][]float64, filename string) {
  f, err := os.Create(filename)
  if err != nil {
    logrus.Fatal(err)
  }
  defer f.Close()

  PrintStderr(config, 1, "Writing table `%s'... ", filename)
  writer := bufio.NewWriter(f)
  defer writer.Flush()

  for i := 0; i < len(matrix); i++ {
    for j := 0; j < len(matrix[i]); j++ {
      if j > 0 {
        fmt.Fprintf(writer, "\t")
      }
      fmt.Fprintf(writer, "%f", matrix[i][j])
    }
    fmt.Fprintf(writer, "\n")
  }
  PrintStderr(config, 1, "done\n")
}

/* -------------------------------------------------------------------------- */

func main() {
  config        := Config{}
  config.Options = DefaultFetchOptions()

  options := getopt.New()

  optBins    := options.    IntLong("bins",     0 ,    -1, "number of bins per region [default: one value per base]")
  optSummary := options. StringLong("summary",  0 ,"mean", "summary statistic [mean (default), max, min, cov, std, sum]")
  optMissing := options. StringLong("missing",  0 ,   "0", "fill value for bins without data [default: 0]")
  optOob     := options. StringLong("oob",      0 , "nan", "fill value for out-of-bounds positions [default: nan]")
  optExact   := options.   BoolLong("exact",    0 ,        "aggregate from full resolution data")
  optThreads := options.    IntLong("threads",  0 ,     1, "number of threads [default: 1]")
  optPlot    := options. StringLong("plot",     0 ,    "", "plot the column means of the matrix to the given file")
  optHelp    := options.   BoolLong("help",    'h',        "print help")
  optVerbose := options.CounterLong("verbose", 'v',        "be verbose")

  options.SetParameters("<input.bw|input.bb> <regions.bed> <output.table>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) != 3 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  if *optThreads < 1 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  config.Verbose         = *optVerbose
  config.Threads         = *optThreads
  config.Plot            = *optPlot
  config.Options.Bins    = *optBins
  config.Options.Summary = *optSummary
  config.Options.Exact   = *optExact
  if v, err := strconv.ParseFloat(*optMissing, 64); err != nil {
    logrus.Fatalf("parsing missing value failed: %v", err)
  } else {
    config.Options.Missing = v
  }
  if v, err := strconv.ParseFloat(*optOob, 64); err != nil {
    logrus.Fatalf("parsing oob value failed: %v", err)
  } else {
    config.Options.Oob = v
  }
  pathOrUrl   := options.Args()[0]
  filenameBed := options.Args()[1]
  filenameOut := options.Args()[2]

  seqnames, froms, tos := importRegions(config, filenameBed)

  matrix := stackup(config, pathOrUrl, seqnames, froms, tos)

  exportTable(config, matrix, filenameOut)

  if config.Plot != "" {
    plotProfile(config, matrix, config.Plot)
  }
}
