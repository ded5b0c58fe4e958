// internal/viewer/routes/register.go
package routes

import (
	"net/http"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/airwaves/internal/state"
)

var log = logging.Logger("viewer")

type Logs interface {
	ServeLogsJSON(w http.ResponseWriter, r *http.Request)
	ServeLogsSSE(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Store *state.Store
	Logs  Logs
}

func Register(mux *http.ServeMux, d Deps) {
	registerAPILogRoutes(mux, d)
	registerStateRoutes(mux, d)
	registerProfileRoutes(mux, d)
	registerSettingsRoutes(mux, d)
	registerSessionRoutes(mux, d)
}
