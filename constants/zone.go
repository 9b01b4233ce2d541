package constants

// Zone names produced by layout analysis.
const (
	ZoneBase      = "base"
	ZoneCore      = "core"
	ZoneEvidence  = "evidence"
	ZoneOther     = "other"
	ZoneReference = "reference"
)

// AllZones lists every zone in the order the layout mapping declares them.
var AllZones = []string{ZoneBase, ZoneCore, ZoneEvidence, ZoneOther, ZoneReference}

// Column names of the extraction table. Order and spelling are part of the API contract.
const (
	ColEntity    = "entity"
	ColProperty  = "property"
	ColValue     = "value"
	ColEntityTag = "entityTag"
	ColValueTag  = "valueTag"
	ColLevel     = "level"
)

// Columns is the fixed six-column schema of every extraction table.
var Columns = []string{ColEntity, ColProperty, ColValue, ColEntityTag, ColValueTag, ColLevel}
