/* Copyright (C) 2016-2020 Philipp Benner
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

package gobbi

/* -------------------------------------------------------------------------- */

import "bytes"
import "fmt"

/* -------------------------------------------------------------------------- */

// Genome is an ordered table of chromosome names and sizes. For genomes
// read from a bbi file the order is the chromosome-id order of the file,
// i.e. Seqnames[i] is the name of the chromosome with id i.
type Genome struct {
  Seqnames []string
  Lengths  []int
  index    map[string]int
}

/* constructor
 * -------------------------------------------------------------------------- */

func NewGenome(seqnames []string, lengths []int) Genome {
  if len(seqnames) != len(lengths) {
    panic("NewGenome(): invalid parameters")
  }
  index := make(map[string]int)
  for i, name := range seqnames {
    index[name] = i
  }
  return Genome{seqnames, lengths, index}
}

/* -------------------------------------------------------------------------- */

// Number of chromosomes in the table.
func (genome Genome) Length() int {
  return len(genome.Seqnames)
}

// Id of the given chromosome. Returns an error if the chromosome
// is not found.
func (genome Genome) GetIdx(seqname string) (int, error) {
  if i, ok := genome.index[seqname]; ok {
    return i, nil
  }
  return -1, fmt.Errorf("sequence `%s': %w", seqname, ErrChromNotFound)
}

// Length of the given chromosome. Returns an error if the chromosome
// is not found.
func (genome Genome) SeqLength(seqname string) (int, error) {
  if i, ok := genome.index[seqname]; ok {
    return genome.Lengths[i], nil
  }
  return 0, fmt.Errorf("sequence `%s': %w", seqname, ErrChromNotFound)
}

// Size of the given chromosome, or zero if the chromosome is not part
// of the genome. Sizes are always positive, hence zero is unambiguous.
func (genome Genome) SeqSize(seqname string) int {
  if i, ok := genome.index[seqname]; ok {
    return genome.Lengths[i]
  }
  return 0
}

/* convert to string
 * -------------------------------------------------------------------------- */

func (genome Genome) String() string {
  var buffer bytes.Buffer

  buffer.WriteString(
    fmt.Sprintf("%10s %10s", "seqnames", "lengths"))

  for i := 0; i < genome.Length(); i++ {
    buffer.WriteString(
      fmt.Sprintf("\n%10s %10d",
        genome.Seqnames[i],
        genome.Lengths [i]))
  }
  return buffer.String()
}
