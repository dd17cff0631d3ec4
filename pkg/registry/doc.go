// Package registry stores authored form and detail declarations per entity.
//
// Declarations are registered in Go (AddForm, AddDetail) or loaded from
// JSON/YAML documents with LoadFS:
//
//	fieldSets:
//	  tenderBase:
//	    - {name: title, type: text, required: true}
//	forms:
//	  tender.edit:
//	    include: [tenderBase]
//	    fields:
//	      - name: employeeIDs
//	        type: command
//	        options:
//	          remote: {endpoint: profiles.all, multiple: true, filter: {team: "{{teamID}}"}}
//	details:
//	  tender.detail:
//	    include: [tenderBase]
//
// Included field sets compose with "last declaration wins": a later field
// with the same name replaces the earlier one in full but keeps its slot.
package registry
