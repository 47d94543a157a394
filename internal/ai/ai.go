package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"google.golang.org/api/option"
)

const sqlToolName = "run_readonly_sql"

// maxToolRounds bounds how many SQL calls one question may trigger.
const maxToolRounds = 5

// maxRows caps how many rows a tool query returns to the model.
const maxRows = 50

var ErrUnsafeQuery = errors.New("only SELECT queries over catalog tables are allowed")

// catalogTables are the only tables the assistant may read. Reviews are
// exposed through the approved_reviews view so pending ones never leak.
var catalogTables = map[string]bool{
	"products":         true,
	"categories":       true,
	"approved_reviews": true,
	"phil_locations":   true,
}

var (
	stringLiteral     = regexp.MustCompile(`'(?:[^']|'')*'`)
	forbiddenKeywords = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|REPLACE|GRANT|REVOKE|LOCK|CALL|HANDLER|LOAD|INTO|OUTFILE|DUMPFILE|PROCEDURE|SHOW|SET|EXECUTE|PREPARE)\b`)
	unsafeFunctions   = regexp.MustCompile(`(?i)\b(LOAD_|SLEEP|BENCHMARK|GET_LOCK|RELEASE_|IS_FREE_LOCK|IS_USED_LOCK|MASTER_|SOURCE_|SYS_|PS_|USER|CURRENT_USER|SESSION_USER|SYSTEM_USER|DATABASE|SCHEMA|VERSION|CONNECTION_ID)\w*\s*\(`)
	systemSchemas     = regexp.MustCompile(`(?i)\b(mysql|information_schema|performance_schema|sys)\b`)
	privateTables     = regexp.MustCompile(`(?i)\b(users|addresses|orders|order_items|payments|carts|cart_items|wishlist|notifications|contact_messages|message_replies|product_reviews)\b`)
	tableRef          = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([^\s,()]+)(?:\s+(?:AS\s+)?([a-z_][a-z0-9_]*))?`)
	derivedAlias      = regexp.MustCompile(`(?i)\)\s*(?:AS\s+)?([a-z_][a-z0-9_]*)`)
	qualifiedName     = regexp.MustCompile(`(?i)\b([a-z_][a-z0-9_$]*)\s*\.\s*[a-z_*]`)
	limitClause       = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
)

// AIService holds the Gemini client and the read-only database connection.
type AIService struct {
	Client *genai.Client
	DB     *sql.DB
	Model  string
}

// NewAIService initializes the Gemini client.
func NewAIService(apiKey, modelName string, dbReadOnly *sql.DB) (*AIService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &AIService{Client: client, DB: dbReadOnly, Model: modelName}, nil
}

// Close releases the Gemini client.
func (s *AIService) Close() error {
	return s.Client.Close()
}

// GenerateResponse answers a shopper's question, letting the model look up
// products, categories and approved reviews through a read-only SQL tool.
// It returns the answer and the total tokens used.
func (s *AIService) GenerateResponse(ctx context.Context, userMessage, customerName string) (string, int, error) {
	log := logging.NewPackageLogger("ai")
	model := s.Client.GenerativeModel(s.Model)

	// 1. Define Tools
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        sqlToolName,
			Description: "Executes a READ-ONLY MySQL SELECT over the Jeweluxe catalog to answer questions about products.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {
						Type:        genai.TypeString,
						Description: "The MySQL SELECT query to execute.",
					},
				},
				Required: []string{"query"},
			},
		}},
	}}

	// 2. System Instructions
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(customerName))},
	}

	// 3. Execute Chat
	cs := model.StartChat()
	res, err := cs.SendMessage(ctx, genai.Text(userMessage))
	if err != nil {
		return "", 0, fmt.Errorf("error sending message: %w", err)
	}
	totalTokens := tokens(res, 0)

	// 4. Loop for Function Calls
	for round := 0; ; round++ {
		if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
			return "Sorry, I couldn't come up with an answer. Could you rephrase that?", totalTokens, nil
		}
		part := res.Candidates[0].Content.Parts[0]

		funcCall, ok := part.(genai.FunctionCall)
		if !ok {
			return fmt.Sprintf("%v", part), totalTokens, nil
		}
		if funcCall.Name != sqlToolName {
			return "", totalTokens, fmt.Errorf("unknown function: %s", funcCall.Name)
		}
		if round >= maxToolRounds {
			return "", totalTokens, fmt.Errorf("assistant exceeded %d tool calls", maxToolRounds)
		}

		query, _ := funcCall.Args["query"].(string)
		log.Debug().Str("query", query).Msg("assistant running SQL")

		sqlResult, sqlErr := s.runReadOnlyQuery(ctx, query)
		if sqlErr != nil {
			sqlResult = fmt.Sprintf("SQL Error: %v", sqlErr)
		}

		// Send Tool Response back to Gemini
		res, err = cs.SendMessage(ctx, genai.FunctionResponse{
			Name:     sqlToolName,
			Response: map[string]interface{}{"result": sqlResult},
		})
		if err != nil {
			return "", totalTokens, fmt.Errorf("tool response error: %w", err)
		}
		totalTokens = tokens(res, totalTokens)
	}
}

func tokens(res *genai.GenerateContentResponse, prev int) int {
	if res != nil && res.UsageMetadata != nil {
		return int(res.UsageMetadata.TotalTokenCount)
	}
	return prev
}

// CheckReadOnlyQuery rejects anything but a single SELECT over the catalog
// tables, and appends a LIMIT when the query has none. String literals are
// blanked before the checks run so a search term like 'users' is allowed.
func CheckReadOnlyQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	if q == "" || !strings.HasPrefix(strings.ToUpper(q), "SELECT") {
		return "", ErrUnsafeQuery
	}
	// Escapes, comments, variables and quoted identifiers can all hide a
	// name from the checks below.
	if strings.ContainsAny(q, "\\\"`@#") {
		return "", ErrUnsafeQuery
	}
	code := stringLiteral.ReplaceAllString(q, "''")
	if strings.Count(code, "'")%2 != 0 || strings.Contains(code, ";") || strings.Contains(code, "--") || strings.Contains(code, "/*") {
		return "", ErrUnsafeQuery
	}
	if forbiddenKeywords.MatchString(code) || unsafeFunctions.MatchString(code) ||
		systemSchemas.MatchString(code) || privateTables.MatchString(code) {
		return "", ErrUnsafeQuery
	}

	known := make(map[string]bool, len(catalogTables))
	for name := range catalogTables {
		known[name] = true
	}
	for _, m := range tableRef.FindAllStringSubmatch(code, -1) {
		if !catalogTables[strings.ToLower(m[1])] {
			return "", ErrUnsafeQuery
		}
		if m[2] != "" {
			known[strings.ToLower(m[2])] = true
		}
	}
	for _, m := range derivedAlias.FindAllStringSubmatch(code, -1) {
		known[strings.ToLower(m[1])] = true
	}
	for _, m := range qualifiedName.FindAllStringSubmatch(code, -1) {
		if !known[strings.ToLower(m[1])] {
			return "", ErrUnsafeQuery
		}
	}

	if !limitClause.MatchString(code) {
		q = fmt.Sprintf("%s LIMIT %d", q, maxRows)
	}
	return q, nil
}

func (s *AIService) runReadOnlyQuery(ctx context.Context, query string) (string, error) {
	q, err := CheckReadOnlyQuery(query)
	if err != nil {
		return "", err
	}
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}
	tableData := []map[string]interface{}{}
	for rows.Next() && len(tableData) < maxRows {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return "", err
		}
		entry := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				entry[col] = string(b)
			} else {
				entry[col] = values[i]
			}
		}
		tableData = append(tableData, entry)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	jsonData, err := json.Marshal(tableData)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func systemPrompt(customerName string) string {
	if customerName == "" {
		customerName = "a guest"
	}
	return fmt.Sprintf(`
You are the Jeweluxe shopping assistant, helping %s find jewelry.
Prices are in Philippine pesos (PHP). Only recommend products that are not archived and have stock > 0.
Access: MySQL database (%s), SELECT only, and only the tables listed below. Use plain names, no schema prefixes.
Schema: %s
Rules: Be concise and friendly. Never invent products, prices or stock. Map typos (e.g. "neklace") to the right words.`,
		customerName, sqlToolName, schemaDefinition)
}

const schemaDefinition = `
- categories (id, name, slug)
- products (id, category_id, name, slug, description, price, stock, image, is_archived, created_at)
- approved_reviews (id, product_id, rating 1..5, comment, created_at) -- published reviews only
- phil_locations (region, province, city, barangay, postal_code)
`
