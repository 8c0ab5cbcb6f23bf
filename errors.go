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

import "errors"

/* -------------------------------------------------------------------------- */

// Error kinds returned by this library. All errors returned from exported
// functions wrap one of these values so that callers can distinguish them
// with errors.Is().
var (
  // the resource does not start with a BigWig or BigBed magic number
  ErrNoBbi             = errors.New("not a BigWig or BigBed file")
  // a local file does not exist
  ErrNotFound          = errors.New("resource not found")
  // a remote resource could not be fetched
  ErrRemoteOpen        = errors.New("remote open failed")
  // the file handle was closed
  ErrClosed            = errors.New("resource is closed")
  // the queried chromosome is not part of the file
  ErrChromNotFound     = errors.New("chromosome not found")
  // the query start position lies beyond the chromosome end
  ErrStartExceedsChrom = errors.New("start exceeds chromosome length")
  // the query interval has negative length
  ErrNegativeLength    = errors.New("interval has negative length")
  // the requested summary statistic does not exist
  ErrInvalidSummary    = errors.New("invalid summary statistic")
  // stacked windows have unequal lengths at full resolution
  ErrUnequalWindows    = errors.New("window lengths are not equal")
  // the requested zoom level does not exist
  ErrInvalidZoom       = errors.New("invalid zoom level")
)
