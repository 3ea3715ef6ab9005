// internal/tools/catalog.go
// Package tools publishes machine-readable descriptions of the registry
// operations for external tool-calling agents. The catalog is a derived
// artifact of the service signatures: stable operation names, ordered
// parameter lists, and requiredness. It carries no logic of its own.
package tools

import "encoding/json"

// Param describes one operation parameter.
type Param struct {
	Name        string // Wire name of the parameter
	Type        string // JSON type ("string")
	Description string // Human-readable description
	Required    bool   // Whether the parameter must be supplied
}

// Operation describes one callable registry operation.
type Operation struct {
	Name        string  // Stable external operation name
	Description string  // What the operation does
	Params      []Param // Ordered parameter list
}

// Catalog returns the descriptors for all five registry operations. Order
// and names are stable: external agents key on them.
func Catalog() []Operation {
	return []Operation{
		{
			Name:        "complaint_register",
			Description: "register a new complaint",
			Params: []Param{
				{Name: "complaintId", Type: "string", Description: "unique complaint id", Required: true},
				{Name: "complaintHash", Type: "string", Description: "SHA256 hash of the complaint text", Required: true},
				{Name: "userId", Type: "string", Description: "unique user id of the complainant", Required: true},
				{Name: "timestamp", Type: "string", Description: "time at which the complaint is registered", Required: true},
			},
		},
		{
			Name:        "register_proof",
			Description: "store the hash of a piece of evidence, its classification, and its submission timestamp against a complaint",
			Params: []Param{
				{Name: "complaintId", Type: "string", Description: "complaint id to which the proof belongs", Required: true},
				{Name: "proofHash", Type: "string", Description: "SHA256 hash of the proof", Required: true},
				{Name: "proofKind", Type: "string", Description: "type of the proof which has been submitted", Required: true},
				{Name: "timestamp", Type: "string", Description: "time at which the proof was submitted", Required: true},
			},
		},
		{
			Name:        "update_complaint_status",
			Description: "update the complaint status; complaints already RESOLVED or REJECTED are frozen and the update is rejected",
			Params: []Param{
				{Name: "complaintId", Type: "string", Description: "complaint id whose status needs to be updated", Required: true},
				{Name: "status", Type: "string", Description: "status of the complaint: FILED, UNDER_INVESTIGATION, RESOLVED, or REJECTED", Required: true},
				{Name: "timestamp", Type: "string", Description: "time at which the complaint status is updated", Required: true},
			},
		},
		{
			Name:        "get_complaints",
			Description: "fetch all complaints",
			Params:      []Param{},
		},
		{
			Name:        "get_complaint",
			Description: "fetch a single complaint by complaint id",
			Params: []Param{
				{Name: "complaintId", Type: "string", Description: "complaint id to retrieve", Required: true},
			},
		},
	}
}

// function-calling document shapes

type toolEntry struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  toolParameters `json:"parameters"`
}

type toolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]toolProperty `json:"properties"`
	Required   []string                `json:"required"`
}

type toolProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ToolsJSON renders the catalog as a function-calling tool document suitable
// for external agents.
func ToolsJSON() ([]byte, error) {
	entries := make([]toolEntry, 0, len(Catalog()))
	for _, op := range Catalog() {
		params := toolParameters{
			Type:       "object",
			Properties: make(map[string]toolProperty, len(op.Params)),
			Required:   []string{},
		}
		for _, p := range op.Params {
			params.Properties[p.Name] = toolProperty{Type: p.Type, Description: p.Description}
			if p.Required {
				params.Required = append(params.Required, p.Name)
			}
		}
		entries = append(entries, toolEntry{
			Type: "function",
			Function: toolFunction{
				Name:        op.Name,
				Description: op.Description,
				Parameters:  params,
			},
		})
	}
	return json.MarshalIndent(entries, "", "  ")
}

// PromptsJSON renders the prompts document. The registry publishes no
// prompts; the document exists so agents can probe it uniformly.
func PromptsJSON() ([]byte, error) {
	return json.MarshalIndent(map[string][]string{"prompts": {}}, "", "  ")
}
