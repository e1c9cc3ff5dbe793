/*
 * metadata.go, part of avoforce.
 *
 * Copyright 2025 The avoforce authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package avogadro

import (
	"encoding/json"
	"io"

	"github.com/rmera/avoforce/qm"
)

//InputFormat is the molecule format the plugin asks Avogadro for.
const InputFormat = "cjson"

//Metadata is what the plugin tells Avogadro about itself. The fields are
//written in this order.
type Metadata struct {
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	Description string `json:"description"`
	InputFormat string `json:"inputFormat"`
	Elements    string `json:"elements"`
	UnitCell    bool   `json:"unitCell"`
	Gradients   bool   `json:"gradients"`
	Ion         bool   `json:"ion"`
	Radical     bool   `json:"radical"`

	//Unavailable is the message given instead of the name when the backend can't be used.
	Unavailable string `json:"-"`
}

//MetadataFrom builds the metadata for a backend.
func MetadataFrom(d qm.Description) Metadata {
	return Metadata{
		Name:        d.Name,
		Identifier:  d.Identifier,
		Description: d.Text,
		InputFormat: InputFormat,
		Elements:    d.Elements.String(),
		UnitCell:    d.UnitCell,
		Gradients:   true,
		Ion:         d.Ion,
		Radical:     d.Radical,
		Unavailable: d.Unavailable,
	}
}

//WriteMetadata writes md to w as a JSON object in one line. If the backend
//is not available, it writes an empty object, which makes Avogadro ignore the plugin.
func WriteMetadata(w io.Writer, md Metadata, available bool) error {
	var out []byte
	var err error
	if available {
		out, err = json.Marshal(md)
		if err != nil {
			return newError(err, "", "WriteMetadata")
		}
	} else {
		out = []byte("{}")
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

//DisplayName returns the name of the plugin, or an error with the
//unavailability message if the backend is not available.
func DisplayName(md Metadata, available bool) (string, error) {
	if !available || md.Name == "" {
		return "", newError(ErrUnavailable, md.Unavailable, "DisplayName")
	}
	return md.Name, nil
}
