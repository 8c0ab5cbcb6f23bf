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

import "database/sql"
import "fmt"

import _ "github.com/go-sql-driver/mysql"

/* import chromosome sizes from ucsc
 * -------------------------------------------------------------------------- */

// Import chromosome names and sizes of the given assembly (e.g. hg19)
// from the public UCSC MySQL server. The resulting genome is ordered
// as returned by the server.
func ImportGenomeFromUCSC(assembly string) (Genome, error) {
  var i_seqname string
  var i_size    int

  seqnames := []string{}
  lengths  := []int{}

  /* open connection */
  db, err := sql.Open("mysql",
    fmt.Sprintf("genome@tcp(genome-mysql.cse.ucsc.edu:3306)/%s", assembly))
  if err != nil {
    return Genome{}, err
  }
  defer db.Close()

  if err := db.Ping(); err != nil {
    return Genome{}, err
  }

  /* receive data */
  rows, err := db.Query("SELECT chrom, size FROM chromInfo")
  if err != nil {
    return Genome{}, err
  }
  defer rows.Close()
  for rows.Next() {
    if err := rows.Scan(&i_seqname, &i_size); err != nil {
      return Genome{}, err
    }
    seqnames = append(seqnames, i_seqname)
    lengths  = append(lengths,  i_size)
  }
  if err := rows.Err(); err != nil {
    return Genome{}, err
  }
  return NewGenome(seqnames, lengths), nil
}
