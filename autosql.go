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

package gobbi

/* -------------------------------------------------------------------------- */

// Parser for the AutoSql schema text embedded in bigBed files. Only the
// subset needed for column reporting is implemented: table name and
// comment, column names, column types and column comments.

/* -------------------------------------------------------------------------- */

import "bufio"
import "fmt"
import "strings"

/* -------------------------------------------------------------------------- */

type AutoSqlColumn struct {
  Type    string
  Name    string
  Comment string
}

type AutoSqlSchema struct {
  Name    string
  Comment string
  Columns []AutoSqlColumn
}

/* -------------------------------------------------------------------------- */

// External type name a column maps to when its values are exported,
// following the usual AutoSql base types. Array typed and unknown
// columns map to a generic object type.
func (column AutoSqlColumn) Dtype() string {
  t := column.Type
  if k := strings.IndexByte(t, '['); k >= 0 {
    return "object"
  }
  switch t {
  case "string", "lstring", "char":
    return "object"
  case "double":
    return "float64"
  case "float":
    return "float32"
  case "int":
    return "int32"
  case "uint":
    return "uint32"
  case "short":
    return "int16"
  case "ushort":
    return "uint16"
  case "byte":
    return "int8"
  case "ubyte":
    return "uint8"
  case "off":
    return "int64"
  }
  return "object"
}

/* -------------------------------------------------------------------------- */

func unquote(str string) string {
  str = strings.TrimSpace(str)
  str = strings.TrimPrefix(str, "\"")
  str = strings.TrimSuffix(str, "\"")
  return str
}

// Parse an AutoSql table definition of the form
//
//   table name
//   "table comment"
//   (
//   type name;  "column comment"
//   ...
//   )
//
func ParseAutoSql(text string) (*AutoSqlSchema, error) {
  schema  := AutoSqlSchema{}
  scanner := bufio.NewScanner(strings.NewReader(text))
  state   := 0

  for scanner.Scan() {
    line := strings.TrimSpace(scanner.Text())
    if line == "" {
      continue
    }
    switch state {
    case 0:
      fields := strings.Fields(line)
      if len(fields) != 2 || fields[0] != "table" {
        return nil, fmt.Errorf("invalid AutoSql table declaration `%s'", line)
      }
      schema.Name = fields[1]
      state = 1
    case 1:
      schema.Comment = unquote(line)
      state = 2
    case 2:
      if line != "(" {
        return nil, fmt.Errorf("invalid AutoSql schema: expected `(' but got `%s'", line)
      }
      state = 3
    case 3:
      if line == ")" {
        return &schema, nil
      }
      k := strings.IndexByte(line, ';')
      if k < 0 {
        return nil, fmt.Errorf("invalid AutoSql column declaration `%s'", line)
      }
      fields := strings.Fields(line[:k])
      if len(fields) != 2 {
        return nil, fmt.Errorf("invalid AutoSql column declaration `%s'", line)
      }
      schema.Columns = append(schema.Columns, AutoSqlColumn{
        Type   : fields[0],
        Name   : fields[1],
        Comment: unquote(line[k+1:]) })
    }
  }
  return nil, fmt.Errorf("invalid AutoSql schema: unexpected end of text")
}

/* default schema
 * -------------------------------------------------------------------------- */

// Standard BED schema used for bigBed files that do not embed an
// AutoSql text. The column list is truncated to the field count
// declared in the file header.
const defaultBedAutoSql =
  "table bed\n"                                                              +
  "\"Browser Extensible Data\"\n"                                            +
  "(\n"                                                                      +
  "string chrom;       \"Reference sequence chromosome or scaffold\"\n"      +
  "uint   chromStart;  \"Start position in chromosome\"\n"                   +
  "uint   chromEnd;    \"End position in chromosome\"\n"                     +
  "string name;        \"Name of item.\"\n"                                  +
  "uint   score;       \"Score (0-1000)\"\n"                                 +
  "char[1] strand;     \"+ or - for strand\"\n"                              +
  "uint   thickStart;  \"Start of where display should be thick\"\n"         +
  "uint   thickEnd;    \"End of where display should be thick\"\n"           +
  "uint   reserved;    \"Used as itemRgb\"\n"                                +
  "int    blockCount;  \"Number of blocks\"\n"                               +
  "int[blockCount] blockSizes;  \"Comma separated list of block sizes\"\n"   +
  "int[blockCount] chromStarts; \"Start positions relative to chromStart\"\n"+
  ")\n"

func defaultBedSchema(fieldCount int) (*AutoSqlSchema, error) {
  schema, err := ParseAutoSql(defaultBedAutoSql)
  if err != nil {
    return nil, err
  }
  if fieldCount > 0 && fieldCount < len(schema.Columns) {
    schema.Columns = schema.Columns[:fieldCount]
  }
  return schema, nil
}
