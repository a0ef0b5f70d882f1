// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
)

// List endpoints page with limit/offset. Council history, proposals and
// settlement records grow by at most a handful of rows per epoch, so the
// default page covers most queries in one request.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
	TotalCountHeader = "X-Total-Count"
)

var ErrInvalidPage = errors.New("invalid page parameters")

// pageRequest is a parsed ?limit=&offset=&order= query
type pageRequest struct {
	Limit  int
	Offset int
	Desc   bool
}

func parsePage(r *http.Request) (pageRequest, error) {
	page := pageRequest{Limit: DefaultPageLimit}
	query := r.URL.Query()
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return pageRequest{}, ErrInvalidPage
		}
		page.Limit = min(limit, MaxPageLimit)
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return pageRequest{}, ErrInvalidPage
		}
		page.Offset = offset
	}
	switch query.Get("order") {
	case "", "asc":
	case "desc":
		page.Desc = true
	default:
		return pageRequest{}, ErrInvalidPage
	}
	return page, nil
}

// paginate sets the total count header and returns the requested window of
// items, which must be in ascending order
func paginate[T any](w http.ResponseWriter, items []T, page pageRequest) []T {
	w.Header().Set(TotalCountHeader, strconv.Itoa(len(items)))
	if page.Desc {
		items = slices.Clone(items)
		slices.Reverse(items)
	}
	if page.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if page.Limit > 0 {
		end = min(page.Offset+page.Limit, end)
	}
	return items[page.Offset:end]
}
