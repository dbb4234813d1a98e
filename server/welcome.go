package server

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Version is the server version. It is set at build time with
// -ldflags "-X github.com/ndlib/ioxstore/server.Version=..."
var Version = "dev"

func WelcomeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fmt.Fprintf(w, "ioxstore (%s)\n", Version)
}
