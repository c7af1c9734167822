package routes

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	coreerrors "reflectledger/core/errors"
	nativecommon "reflectledger/native/common"
	"reflectledger/native/dividends"
	"reflectledger/native/token"
)

type processRequest struct {
	Iterations int `json:"iterations"`
}

type processResponse struct {
	Iterations int `json:"iterations"`
	Claims     int `json:"claims"`
	Cursor     int `json:"cursor"`
}

type swapResponse struct {
	PendingBefore string `json:"pendingBefore"`
	PendingAfter  string `json:"pendingAfter"`
}

type halfTaxRequest struct {
	Enabled *bool `json:"enabled"`
}

type halfTaxResponse struct {
	HalfTax bool `json:"halfTax"`
}

func (api *ledgerAPI) processDividends(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var result dividends.ProcessResult
	err := api.update(func(e *token.Engine) error {
		var err error
		result, err = e.ProcessDividendTracker(r.Context(), req.Iterations)
		return err
	})
	if err != nil {
		api.writeEngineError(w, "process dividends", err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{Iterations: result.Iterations, Claims: result.Claims, Cursor: result.Cursor})
}

func (api *ledgerAPI) swapAndLiquify(w http.ResponseWriter, r *http.Request) {
	var out swapResponse
	err := api.update(func(e *token.Engine) error {
		out.PendingBefore = e.PendingSwap().String()
		if err := e.SwapAndLiquify(r.Context(), e.Owner()); err != nil {
			return err
		}
		out.PendingAfter = e.PendingSwap().String()
		return nil
	})
	if err != nil {
		api.writeEngineError(w, "swap and liquify", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (api *ledgerAPI) halfTax(w http.ResponseWriter, r *http.Request) {
	var req halfTaxRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, errors.New("enabled required"))
		return
	}
	var out halfTaxResponse
	err := api.update(func(e *token.Engine) error {
		if err := e.SwitchHalfTax(e.Owner(), *req.Enabled); err != nil {
			return err
		}
		out.HalfTax = e.HalfTax()
		return nil
	})
	if err != nil {
		api.writeEngineError(w, "switch half tax", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// update runs fn as the owner and then the commit hook under one lock.
func (api *ledgerAPI) update(fn func(*token.Engine) error) error {
	return api.host.Update(func(e *token.Engine) error {
		if err := fn(e); err != nil {
			return err
		}
		if api.onCommit != nil {
			return api.onCommit(e)
		}
		return nil
	})
}

func (api *ledgerAPI) writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, coreerrors.ErrNotOwner):
		writeError(w, http.StatusForbidden, err)
	default:
		api.logger.Error("gateway admin call failed", slog.String("op", op), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
