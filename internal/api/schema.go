package api

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/wondertwin-ai/srvgraph/internal/store"
)

// entryField resolves one field of the Record type from a store.Entry source.
func entryField(get func(store.Entry) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		e, ok := p.Source.(store.Entry)
		if !ok {
			return nil, fmt.Errorf("unexpected record source %T", p.Source)
		}
		return get(e), nil
	}
}

var recordType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Record",
	Description: "Basics of a service def",
	Fields: graphql.Fields{
		"id": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.Int),
			Description: "Key the record is stored under",
			Resolve:     entryField(func(e store.Entry) any { return e.ID }),
		},
		"name": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.String),
			Resolve: entryField(func(e store.Entry) any { return e.Name }),
		},
		"desc": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.String),
			Resolve: entryField(func(e store.Entry) any { return e.Desc }),
		},
	},
})

var newRecordInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name:        "NewRecordInput",
	Description: "Basics of a service def",
	Fields: graphql.InputObjectConfigFieldMap{
		"name": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"desc": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
	},
})

// NewSchema builds the Query and Mutation roots on top of res.
func NewSchema(res *Resolver) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"apiVersion": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return res.APIVersion(), nil
				},
			},
			"record": &graphql.Field{
				Type: recordType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(int)
					entry, err := res.Record(id)
					if err != nil {
						return nil, err
					}
					return entry, nil
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createRecord": &graphql.Field{
				Type: graphql.NewNonNull(recordType),
				Args: graphql.FieldConfigArgument{
					"data": &graphql.ArgumentConfig{Type: graphql.NewNonNull(newRecordInputType)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					data, _ := p.Args["data"].(map[string]any)
					in := store.NewRecordInput{}
					in.Name, _ = data["name"].(string)
					in.Desc, _ = data["desc"].(string)
					return res.CreateRecord(in), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}
