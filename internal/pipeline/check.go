package pipeline

import (
	"github.com/papapumpkin/pares/internal/conflict"
	"github.com/papapumpkin/pares/internal/criticality"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/dialogue"
	"github.com/papapumpkin/pares/internal/equity"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/network"
	"github.com/papapumpkin/pares/internal/priority"
	"github.com/papapumpkin/pares/internal/table"
)

// requirement lists the columns a stage cannot work without. Required
// tables must be present; the others are only checked when present.
type requirement struct {
	table    string
	columns  []string
	required bool
}

var requirements = []requirement{
	{join.TableContext, []string{join.ColContextID, join.ColGeoID}, true},
	{join.TableGeo, []string{join.ColGeoID, join.ColGrupo}, true},
	{network.TableActors, []string{network.ColActorID}, false},
	{network.TableRelations, []string{network.ColActorID, network.ColOtherActor, network.ColRelType}, false},
	{dialogue.TableSpaces, []string{dialogue.ColSpaceID}, false},
	{dialogue.TableMembers, []string{dialogue.ColSpaceID, dialogue.ColActorID}, false},
	{conflict.TableEventActors, []string{conflict.ColConflictID, conflict.ColActorID}, false},
	{priority.TablePriorization, []string{priority.ColMdvID, priority.ColITotal}, false},
	{priority.TableThreats, []string{priority.ColThreatID, priority.ColSuma}, false},
	{priority.TableThreatImpacts, []string{priority.ColMdvID, priority.ColThreatID}, false},
	{priority.TableRespondents, []string{priority.ColRespondentID, priority.ColMdvID}, false},
	{priority.TableResponses, []string{priority.ColRespondentID}, false},
	{criticality.TableServiceLivelihood, []string{criticality.ColServiceID, criticality.ColMdvID}, false},
	{criticality.TableEcosystems, []string{criticality.ColEcosystem}, false},
	{criticality.TableEcoServices, []string{criticality.ColObservationID, criticality.ColServiceID}, false},
	{criticality.TableEcoLivelihoods, []string{criticality.ColObservationID, criticality.ColMdvID}, false},
	{criticality.TableThreatServices, []string{criticality.ColThreatID, criticality.ColServiceID}, false},
	{equity.TableDifLivelihoods, []string{equity.ColDifGroup}, false},
	{equity.TableDifServices, []string{equity.ColDifGroup}, false},
}

// Check reports schema problems without running anything. The first
// error is what a strict run would return.
func Check(reg *table.Registry) ([]error, diag.List) {
	var errs []error
	var ds diag.List
	for _, req := range requirements {
		if !reg.Has(req.table) {
			if req.required {
				errs = append(errs, &diag.SchemaError{Table: req.table})
				ds.Add(stage, req.table, diag.KindMissingTable, "required table is missing")
			}
			continue
		}
		if err := reg.Require(req.table, req.columns...); err != nil {
			errs = append(errs, err)
			ds.Add(stage, req.table, diag.KindMissingColumn, "%v", err)
		}
	}
	return errs, ds
}
