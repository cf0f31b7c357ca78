package api

import (
	"bytes"
	"html/template"
	"net/http"
)

var graphiqlTmpl = template.Must(template.New("graphiql").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>GraphiQL</title>
  <link rel="stylesheet" href="https://unpkg.com/graphiql@3/graphiql.min.css">
  <style>body { margin: 0; height: 100vh; } #graphiql { height: 100vh; }</style>
</head>
<body>
  <div id="graphiql">Loading...</div>
  <script src="https://unpkg.com/react@18/umd/react.production.min.js" crossorigin></script>
  <script src="https://unpkg.com/react-dom@18/umd/react-dom.production.min.js" crossorigin></script>
  <script src="https://unpkg.com/graphiql@3/graphiql.min.js" crossorigin></script>
  <script>
    var fetcher = GraphiQL.createFetcher({ url: {{.Endpoint}} });
    ReactDOM.createRoot(document.getElementById("graphiql"))
      .render(React.createElement(GraphiQL, { fetcher: fetcher }));
  </script>
  <noscript>GraphQL endpoint: {{.Endpoint}}</noscript>
</body>
</html>
`))

// renderGraphiQL renders the explorer page for the given endpoint path.
func renderGraphiQL(endpoint string) []byte {
	var buf bytes.Buffer
	if err := graphiqlTmpl.Execute(&buf, struct{ Endpoint string }{endpoint}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// GraphiQL serves the interactive explorer pointed at the /graphql endpoint.
func (h *Handler) GraphiQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(h.graphiql)
}
