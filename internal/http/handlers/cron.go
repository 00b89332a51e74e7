package handlers

import "net/http"

// CronRecover runs one recovery sweep.
func (a *App) CronRecover(w http.ResponseWriter, r *http.Request) {
	res, err := a.Sweeper.Run(r.Context())
	if err != nil {
		a.fail(w, r, err, "internal")
		return
	}
	a.json(w, http.StatusOK, res)
}
