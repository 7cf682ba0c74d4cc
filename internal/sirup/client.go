// Package sirup speaks the SIRUP portal's DataTables endpoints: the unit
// listing of a KLDI, the package listing of a unit, and the public package
// detail page.
package sirup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

// DefaultBaseURL is the public portal.
const DefaultBaseURL = "https://sirup.lkpp.go.id"

// DefaultPageSize asks for every row in a single page, which the portal allows.
const DefaultPageSize = 100000

const (
	unitListingPath    = "/sirup/datatablectr/datatableruprekapkldi"
	packageListingPath = "/sirup/datatablectr/dataruppenyediasatker"
	detailPath         = "/sirup/home/detailPaketPenyediaPublic2017/"

	unitColumns    = 10
	packageColumns = 7

	unitRowWidth    = 2
	packageRowWidth = 4
)

// Config configures a Client.
type Config struct {
	BaseURL  string
	PageSize int
	// MaxPages bounds pagination; zero means no bound.
	MaxPages int
}

// Client lists units and packages through a shared procurement.Fetcher.
type Client struct {
	fetcher  procurement.Fetcher
	baseURL  string
	pageSize int
	maxPages int
	logger   *zap.Logger
}

var (
	_ procurement.UnitLister    = (*Client)(nil)
	_ procurement.PackageLister = (*Client)(nil)
)

// New builds a Client.
func New(fetcher procurement.Fetcher, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		fetcher:  fetcher,
		baseURL:  base,
		pageSize: pageSize,
		maxPages: max(cfg.MaxPages, 0),
		logger:   logger.Named("sirup"),
	}
}

// BaseURL returns the portal root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DetailURL returns the public detail page of a package.
func (c *Client) DetailURL(packageID string) string {
	return c.baseURL + detailPath + url.PathEscape(packageID)
}

// ListUnits returns the organizational units of orgGroupID for fiscalYear.
// Any failure wraps procurement.ErrListUnits.
func (c *Client) ListUnits(ctx context.Context, orgGroupID, fiscalYear string) ([]procurement.OrganizationalUnit, error) {
	params := url.Values{}
	params.Set("idKldi", orgGroupID)
	params.Set("tahun", fiscalYear)
	params.Set("sEcho", "1")
	params.Set("iColumns", strconv.Itoa(unitColumns))

	rows, err := c.fetchRows(ctx, c.baseURL+unitListingPath, params)
	if err != nil {
		return nil, fmt.Errorf("%w %s/%s: %w", procurement.ErrListUnits, orgGroupID, fiscalYear, err)
	}

	units := make([]procurement.OrganizationalUnit, 0, len(rows))
	for i, row := range rows {
		if len(row) < unitRowWidth {
			c.logger.Warn("skipping short unit row", zap.Int("row", i), zap.Int("width", len(row)))
			continue
		}
		units = append(units, procurement.OrganizationalUnit{
			ID:   cellString(row[0]),
			Name: cellString(row[1]),
		})
	}
	return units, nil
}

// ListPackages returns the package stubs of unitID for fiscalYear. Any
// failure wraps procurement.ErrListPackages.
func (c *Client) ListPackages(ctx context.Context, unitID, fiscalYear string) ([]procurement.PackageStub, error) {
	params := url.Values{}
	params.Set("tahun", fiscalYear)
	params.Set("idSatker", unitID)
	params.Set("sEcho", "1")
	params.Set("iColumns", strconv.Itoa(packageColumns))

	rows, err := c.fetchRows(ctx, c.baseURL+packageListingPath, params)
	if err != nil {
		return nil, fmt.Errorf("%w for unit %s: %w", procurement.ErrListPackages, unitID, err)
	}

	stubs := make([]procurement.PackageStub, 0, len(rows))
	for i, row := range rows {
		if len(row) < packageRowWidth {
			c.logger.Warn("skipping short package row",
				zap.String("unit_id", unitID), zap.Int("row", i), zap.Int("width", len(row)))
			continue
		}
		stubs = append(stubs, procurement.PackageStub{
			ID:              cellString(row[0]),
			Name:            cellString(row[1]),
			Pagu:            cellString(row[2]),
			SelectionMethod: cellString(row[3]),
		})
	}
	return stubs, nil
}

// fetchRows pages through a DataTables endpoint until the reported total is
// reached, a short page arrives, or the page bound is hit.
func (c *Client) fetchRows(ctx context.Context, endpoint string, base url.Values) ([][]any, error) {
	var rows [][]any
	for page := 0; c.maxPages == 0 || page < c.maxPages; page++ {
		params := cloneValues(base)
		params.Set("iDisplayStart", strconv.Itoa(len(rows)))
		params.Set("iDisplayLength", strconv.Itoa(c.pageSize))

		resp, err := c.fetcher.Get(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		listing, err := decodeListing(resp.Body)
		if err != nil {
			return nil, err
		}
		rows = append(rows, listing.Rows...)

		if len(listing.Rows) < c.pageSize || len(listing.Rows) == 0 {
			break
		}
		if listing.Total > 0 && len(rows) >= listing.Total {
			break
		}
		c.logger.Debug("requesting next page",
			zap.String("endpoint", endpoint), zap.Int("fetched", len(rows)), zap.Int("total", listing.Total))
	}
	return rows, nil
}

type listing struct {
	Rows  [][]any
	Total int
}

type listingPayload struct {
	AAData       [][]any `json:"aaData"`
	TotalRecords any     `json:"iTotalRecords"`
}

func decodeListing(body []byte) (listing, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload listingPayload
	if err := dec.Decode(&payload); err != nil {
		return listing{}, fmt.Errorf("decode listing: %w", err)
	}
	total, _ := strconv.Atoi(cellString(payload.TotalRecords))
	return listing{Rows: payload.AAData, Total: total}, nil
}

// cellString renders a decoded JSON cell as text, keeping numbers verbatim.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
