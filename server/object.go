package server

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/ndlib/ioxstore/iox"
	"github.com/ndlib/ioxstore/util"
)

// relativeParam turns the star parameter name into a RelativePath.
// The star parameter in httprouter returns the leading slash.
func relativeParam(ps httprouter.Params, name string) iox.RelativePath {
	p := strings.TrimPrefix(ps.ByName(name), "/")
	if p == "" {
		return iox.RelativePath{}
	}
	return iox.NewRelativePath(strings.Split(p, "/")...)
}

// PathsHandler handles requests to GET /db/:db/paths
func (s *RESTServer) PathsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := s.database(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, struct {
		ServerID string `json:"server_id"`
		Database string `json:"database"`
		Root     string `json:"root"`
		Data     string `json:"data"`
		Catalog  string `json:"catalog"`
	}{
		ServerID: o.ServerID().String(),
		Database: o.DatabaseName(),
		Root:     o.RootPath().Path().String(),
		Data:     o.DataPath().String(),
		Catalog:  o.CatalogPath().String(),
	})
}

// ListHandler handles requests to GET /db/:db/list/*prefix
func (s *RESTServer) ListHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := s.database(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ctx := r.Context()
	l, err := o.List(ctx, relativeParam(ps, "prefix"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	paths, err := iox.ListAll(ctx, l)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result := make([]string, len(paths))
	for i, p := range paths {
		result[i] = p.String()
	}
	writeJSON(w, result)
}

// GetHandler handles requests to GET and HEAD /db/:db/object/*path
func (s *RESTServer) GetHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := s.database(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	location := relativeParam(ps, "path")
	rc, err := o.Get(r.Context(), location)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	if r.Method == "HEAD" {
		return
	}
	_, err = io.Copy(w, rc)
	if err != nil {
		// too late to change the status
		s.Log.Warn("copying object", zap.Stringer("path", location), zap.Error(err))
	}
}

// PutHandler handles requests to PUT /db/:db/object/*path
//
// If the request has a Content-MD5 header the body is checked against it,
// and nothing is stored if it does not match. The MD5 and SHA256 of what was
// stored are returned in the X-Content-Md5 and X-Content-Sha256 headers.
func (s *RESTServer) PutHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := s.database(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	location := relativeParam(ps, "path")
	if location.IsEmpty() {
		// before reading any of the body
		s.writeError(w, iox.ErrEmptyPath)
		return
	}
	var expected []byte
	if md5hash64 := r.Header.Get("Content-MD5"); md5hash64 != "" {
		expected, err = base64.StdEncoding.DecodeString(md5hash64)
		if err != nil || len(expected) != 16 {
			w.WriteHeader(400)
			fmt.Fprintln(w, "bad Content-MD5 header")
			return
		}
	}

	ctx := r.Context()
	if err := s.gate.Enter(ctx); err != nil {
		s.writeError(w, err)
		return
	}
	defer s.gate.Leave()

	// ContentLength is -1 when unknown, which is what Put expects.
	hr := util.NewHashReader(r.Body, expected)
	err = o.Put(ctx, location, hr, r.ContentLength)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("X-Content-Md5", hex.EncodeToString(hr.MD5()))
	w.Header().Set("X-Content-Sha256", hex.EncodeToString(hr.SHA256()))
	w.WriteHeader(http.StatusCreated)
}

// DeleteHandler handles requests to DELETE /db/:db/object/*path
func (s *RESTServer) DeleteHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := s.database(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	location := relativeParam(ps, "path")
	err = o.Delete(r.Context(), location)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transactionInfo struct {
	Path     string `json:"path"`
	Revision uint64 `json:"revision"`
	UUID     string `json:"uuid"`
	Kind     string `json:"kind"`
}

// TransactionsHandler handles requests to GET /db/:db/transactions
//
// Files in the transaction directory whose names do not parse are left out.
func (s *RESTServer) TransactionsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := s.database(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ctx := r.Context()
	l, err := o.CatalogTransactions(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer l.Close()
	result := []transactionInfo{}
	for {
		batch, err := l.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			s.writeError(w, err)
			return
		}
		for _, t := range batch {
			info, err := t.Parse()
			if err != nil {
				s.Log.Warn("unexpected file in transaction log", zap.Stringer("path", t), zap.Error(err))
				continue
			}
			result = append(result, transactionInfo{
				Path:     t.String(),
				Revision: info.Revision,
				UUID:     info.UUID.String(),
				Kind:     info.Kind.String(),
			})
		}
	}
	writeJSON(w, result)
}
