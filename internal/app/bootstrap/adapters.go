package bootstrap

import (
	"context"
	"fmt"
	"time"

	beaterrors "loom/contexts/narrative/beat-service/domain/errors"
	beatports "loom/contexts/narrative/beat-service/ports"
	consensuscommands "loom/contexts/narrative/consensus-engine/application/commands"
	consensusqueries "loom/contexts/narrative/consensus-engine/application/queries"
	consensusentities "loom/contexts/narrative/consensus-engine/domain/entities"
	consensusports "loom/contexts/narrative/consensus-engine/ports"
	fortunequeries "loom/contexts/narrative/fortune-service/application/queries"
	fortuneentities "loom/contexts/narrative/fortune-service/domain/entities"
	gamequeries "loom/contexts/narrative/game-service/application/queries"
	gameports "loom/contexts/narrative/game-service/ports"
	pacingcommands "loom/contexts/narrative/pacing-service/application/commands"
	pacingports "loom/contexts/narrative/pacing-service/ports"
)

// systemProposerID marks ballots the platform opens on behalf of a
// lifecycle event rather than a member.
const systemProposerID = "system"

// consensusEngine adapts the consensus module's use cases onto the
// narrower proposal-engine ports each service declares. Services never
// import the engine directly; this is the only seam between them.
type consensusEngine struct {
	proposals consensuscommands.ProposalUseCase
	queries   consensusqueries.ProposalQueryUseCase
}

func (e consensusEngine) open(
	ctx context.Context,
	gameID string,
	kind string,
	subjectType string,
	subjectID string,
	proposerID string,
	rationale string,
	suggestedDelta *int,
	systemOpened bool,
) (consensusentities.Proposal, error) {
	result, err := e.proposals.Open(ctx, consensuscommands.OpenProposalCommand{
		GameID:         gameID,
		Kind:           consensusentities.ProposalKind(kind),
		SubjectType:    subjectType,
		SubjectID:      subjectID,
		ProposerID:     proposerID,
		AIRationale:    rationale,
		SuggestedDelta: suggestedDelta,
		SystemOpened:   systemOpened,
	})
	if err != nil {
		return consensusentities.Proposal{}, err
	}
	return result.Proposal, nil
}

// resolved reports the latest proposal for the subject once it is
// terminal, resolving a due silence timer on the way.
func (e consensusEngine) resolved(
	ctx context.Context,
	kind string,
	subjectID string,
) (consensusentities.Proposal, bool, error) {
	proposal, found, err := e.queries.LatestBySubject(ctx, consensusentities.ProposalKind(kind), subjectID)
	if err != nil || !found {
		return consensusentities.Proposal{}, false, err
	}
	if proposal.Open() {
		proposal, err = e.proposals.ResolveIfDue(ctx, proposal.ProposalID)
		if err != nil {
			return consensusentities.Proposal{}, false, err
		}
	}
	if proposal.Open() {
		return consensusentities.Proposal{}, false, nil
	}
	return proposal, true, nil
}

// forceResolve settles the open proposal for the subject from the current
// tally. Reports false when nothing is open.
func (e consensusEngine) forceResolve(
	ctx context.Context,
	kind string,
	subjectID string,
) (consensusentities.Proposal, bool, error) {
	proposal, found, err := e.queries.OpenBySubject(ctx, consensusentities.ProposalKind(kind), subjectID)
	if err != nil || !found {
		return consensusentities.Proposal{}, false, err
	}
	proposal, err = e.proposals.ForceResolve(ctx, proposal.ProposalID)
	if err != nil {
		return consensusentities.Proposal{}, false, err
	}
	if proposal.Open() {
		return consensusentities.Proposal{}, false, nil
	}
	return proposal, true, nil
}

type gameProposalEngine struct {
	engine consensusEngine
}

var _ gameports.ProposalEngine = gameProposalEngine{}

func (a gameProposalEngine) OpenProposal(
	ctx context.Context,
	gameID, kind, subjectType, subjectID, proposerID string,
) (gameports.ProposalOutcome, error) {
	proposal, err := a.engine.open(ctx, gameID, kind, subjectType, subjectID, proposerID, "", nil, false)
	if err != nil {
		return gameports.ProposalOutcome{}, err
	}
	return gameports.ProposalOutcome{
		ProposalID: proposal.ProposalID,
		Status:     string(proposal.Status),
		Resolved:   !proposal.Open(),
	}, nil
}

func (a gameProposalEngine) ResolvedOutcome(
	ctx context.Context,
	kind string,
	subjectID string,
) (gameports.ProposalOutcome, bool, error) {
	proposal, found, err := a.engine.resolved(ctx, kind, subjectID)
	if err != nil || !found {
		return gameports.ProposalOutcome{}, false, err
	}
	return gameports.ProposalOutcome{
		ProposalID: proposal.ProposalID,
		Status:     string(proposal.Status),
		Resolved:   true,
	}, true, nil
}

type pacingProposalEngine struct {
	engine consensusEngine
}

var _ pacingports.ProposalEngine = pacingProposalEngine{}

func (a pacingProposalEngine) OpenProposal(
	ctx context.Context,
	gameID string,
	kind string,
	subjectType string,
	subjectID string,
	proposerID string,
) (pacingports.ProposalOutcome, error) {
	proposal, err := a.engine.open(ctx, gameID, kind, subjectType, subjectID, proposerID, "", nil, false)
	if err != nil {
		return pacingports.ProposalOutcome{}, err
	}
	return pacingOutcome(proposal, !proposal.Open()), nil
}

func (a pacingProposalEngine) OpenSystemProposal(
	ctx context.Context,
	gameID string,
	kind string,
	subjectType string,
	subjectID string,
	rationale string,
	suggestedDelta int,
) (pacingports.ProposalOutcome, error) {
	proposal, err := a.engine.open(ctx, gameID, kind, subjectType, subjectID, systemProposerID, rationale, &suggestedDelta, true)
	if err != nil {
		return pacingports.ProposalOutcome{}, err
	}
	return pacingOutcome(proposal, !proposal.Open()), nil
}

func (a pacingProposalEngine) ResolvedOutcome(
	ctx context.Context,
	kind string,
	subjectID string,
) (pacingports.ProposalOutcome, bool, error) {
	proposal, found, err := a.engine.resolved(ctx, kind, subjectID)
	if err != nil || !found {
		return pacingports.ProposalOutcome{}, false, err
	}
	return pacingOutcome(proposal, true), true, nil
}

func (a pacingProposalEngine) ForceResolve(
	ctx context.Context,
	kind string,
	subjectID string,
) (pacingports.ProposalOutcome, bool, error) {
	proposal, found, err := a.engine.forceResolve(ctx, kind, subjectID)
	if err != nil || !found {
		return pacingports.ProposalOutcome{}, false, err
	}
	return pacingOutcome(proposal, true), true, nil
}

func pacingOutcome(proposal consensusentities.Proposal, resolved bool) pacingports.ProposalOutcome {
	return pacingports.ProposalOutcome{
		ProposalID:   proposal.ProposalID,
		Status:       string(proposal.Status),
		Resolved:     resolved,
		WinningDelta: proposal.WinningDelta,
	}
}

type beatProposalEngine struct {
	engine consensusEngine
}

var _ beatports.ProposalEngine = beatProposalEngine{}

func (a beatProposalEngine) OpenProposal(
	ctx context.Context,
	gameID string,
	kind string,
	subjectType string,
	subjectID string,
	proposerID string,
) (beatports.ProposalOutcome, error) {
	proposal, err := a.engine.open(ctx, gameID, kind, subjectType, subjectID, proposerID, "", nil, false)
	if err != nil {
		return beatports.ProposalOutcome{}, err
	}
	return beatports.ProposalOutcome{
		ProposalID: proposal.ProposalID,
		Status:     string(proposal.Status),
		Resolved:   !proposal.Open(),
	}, nil
}

func (a beatProposalEngine) OpenSystemProposal(
	ctx context.Context,
	gameID string,
	kind string,
	subjectType string,
	subjectID string,
	rationale string,
) (beatports.ProposalOutcome, error) {
	proposal, err := a.engine.open(ctx, gameID, kind, subjectType, subjectID, systemProposerID, rationale, nil, true)
	if err != nil {
		return beatports.ProposalOutcome{}, err
	}
	return beatports.ProposalOutcome{
		ProposalID: proposal.ProposalID,
		Status:     string(proposal.Status),
		Resolved:   !proposal.Open(),
	}, nil
}

func (a beatProposalEngine) ResolvedOutcome(
	ctx context.Context,
	kind string,
	subjectID string,
) (beatports.ProposalOutcome, bool, error) {
	proposal, found, err := a.engine.resolved(ctx, kind, subjectID)
	if err != nil || !found {
		return beatports.ProposalOutcome{}, false, err
	}
	return beatports.ProposalOutcome{
		ProposalID: proposal.ProposalID,
		Status:     string(proposal.Status),
		Resolved:   true,
	}, true, nil
}

// gameDirectory serves every game-shaped read the other services need:
// rosters for the engine, settings slices for beats and pacing.
type gameDirectory struct {
	games gamequeries.GameQueryUseCase
}

var (
	_ consensusports.MembershipSource   = gameDirectory{}
	_ consensusports.GameSettingsSource = gameDirectory{}
	_ pacingports.GameSource            = gameDirectory{}
	_ beatports.MembershipSource        = gameDirectory{}
)

func (d gameDirectory) ListActiveMemberIDs(ctx context.Context, gameID string) ([]string, error) {
	return d.games.ActiveMemberIDs(ctx, gameID)
}

func (d gameDirectory) IsActiveMember(ctx context.Context, gameID string, userID string) (bool, error) {
	return d.games.IsActiveMember(ctx, gameID, userID)
}

func (d gameDirectory) GetConsensusSettings(ctx context.Context, gameID string) (consensusports.ConsensusSettings, error) {
	game, err := d.games.Get(ctx, gameID)
	if err != nil {
		return consensusports.ConsensusSettings{}, err
	}
	settings := game.Settings.Normalize()
	return consensusports.ConsensusSettings{
		SilenceTimer:   time.Duration(settings.SilenceTimerHours) * time.Hour,
		TieBreakPolicy: consensusentities.TieBreakPolicy(settings.TieBreakMethod),
	}, nil
}

func (d gameDirectory) GetGameInfo(ctx context.Context, gameID string) (pacingports.GameInfo, error) {
	game, err := d.games.Get(ctx, gameID)
	if err != nil {
		return pacingports.GameInfo{}, err
	}
	settings := game.Settings.Normalize()
	return pacingports.GameInfo{
		Status:            string(game.Status),
		StartingTension:   settings.StartingTension,
		TensionVotingMode: string(settings.TensionVotingMode),
	}, nil
}

// beatGameDirectory is split from gameDirectory because the beat and
// pacing GameSource ports share a method name with different shapes.
type beatGameDirectory struct {
	games gamequeries.GameQueryUseCase
}

var _ beatports.GameSource = beatGameDirectory{}

func (d beatGameDirectory) GetGameInfo(ctx context.Context, gameID string) (beatports.GameInfo, error) {
	game, err := d.games.Get(ctx, gameID)
	if err != nil {
		return beatports.GameInfo{}, err
	}
	settings := game.Settings.Normalize()
	return beatports.GameInfo{
		Status:                string(game.Status),
		SignificanceThreshold: string(settings.SignificanceThreshold),
		SilenceTimer:          time.Duration(settings.SilenceTimerHours) * time.Hour,
	}, nil
}

// sceneDirectory lets beats read scene state through pacing's reconcile
// path, so a silence-activated scene accepts beats on first submit.
type sceneDirectory struct {
	pacing pacingcommands.PacingUseCase
}

var _ beatports.SceneSource = sceneDirectory{}

func (d sceneDirectory) GetSceneInfo(ctx context.Context, sceneID string) (beatports.SceneInfo, error) {
	scene, err := d.pacing.ReconcileScene(ctx, sceneID)
	if err != nil {
		return beatports.SceneInfo{}, err
	}
	return beatports.SceneInfo{
		GameID:  scene.GameID,
		Status:  string(scene.Status),
		Tension: scene.Tension,
	}, nil
}

// fortuneRoller resolves roll events through the fortune service so beat
// submissions and ad-hoc API rolls share one distribution.
type fortuneRoller struct {
	fortune fortunequeries.FortuneUseCase
}

var _ beatports.Roller = fortuneRoller{}

func (r fortuneRoller) RollDice(_ context.Context, notation string) (beatports.DiceResult, error) {
	result, err := r.fortune.RollDice(notation)
	if err != nil {
		return beatports.DiceResult{}, fmt.Errorf("%w: %v", beaterrors.ErrInvalidBeatInput, err)
	}
	return beatports.DiceResult{Notation: result.Notation, Total: result.Total}, nil
}

func (r fortuneRoller) RollFortune(_ context.Context, odds string, tension int) (beatports.FortuneResult, error) {
	result, err := r.fortune.Roll(fortuneentities.Odds(odds), tension)
	if err != nil {
		return beatports.FortuneResult{}, fmt.Errorf("%w: %v", beaterrors.ErrInvalidBeatInput, err)
	}
	return beatports.FortuneResult{
		Odds:        string(result.Odds),
		Tension:     result.Tension,
		Outcome:     string(result.Outcome),
		Exceptional: result.Exceptional,
	}, nil
}
