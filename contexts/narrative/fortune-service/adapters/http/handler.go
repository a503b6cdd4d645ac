package httpadapter

import (
	"context"
	"log/slog"

	"loom/contexts/narrative/fortune-service/application/queries"
	"loom/contexts/narrative/fortune-service/domain/entities"
	httptransport "loom/contexts/narrative/fortune-service/transport/http"
)

type Handler struct {
	Fortune queries.FortuneUseCase
	Logger  *slog.Logger
}

func (h Handler) RollFortuneHandler(_ context.Context, req httptransport.RollFortuneRequest) (httptransport.RollFortuneResponse, error) {
	result, err := h.Fortune.Roll(entities.Odds(req.Odds), req.Tension)
	if err != nil {
		return httptransport.RollFortuneResponse{}, err
	}
	return httptransport.RollFortuneResponse{
		Odds:         string(result.Odds),
		OddsLabel:    result.Odds.Label(),
		Tension:      result.Tension,
		Outcome:      string(result.Outcome),
		OutcomeLabel: result.Outcome.Label(),
		Exceptional:  result.Exceptional,
		Distribution: distributionBody(result.Distribution),
	}, nil
}

func (h Handler) ProbabilityTableHandler(_ context.Context) (httptransport.TableResponse, error) {
	rows := h.Fortune.Table()
	resp := httptransport.TableResponse{Rows: make([]httptransport.TableRow, 0, len(rows))}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, httptransport.TableRow{
			Odds:         string(row.Odds),
			Tension:      row.Tension,
			Distribution: distributionBody(row),
		})
	}
	return resp, nil
}

func (h Handler) RollDiceHandler(_ context.Context, req httptransport.RollDiceRequest) (httptransport.RollDiceResponse, error) {
	result, err := h.Fortune.RollDice(req.Notation)
	if err != nil {
		return httptransport.RollDiceResponse{}, err
	}
	return httptransport.RollDiceResponse{Notation: result.Notation, Total: result.Total}, nil
}

func distributionBody(d entities.Distribution) httptransport.DistributionBody {
	return httptransport.DistributionBody{
		ExceptionalYes: d.ExceptionalYes,
		Yes:            d.Yes,
		No:             d.No,
		ExceptionalNo:  d.ExceptionalNo,
	}
}
