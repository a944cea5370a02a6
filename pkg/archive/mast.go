package archive

import(
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// ErrDownload covers both an unreachable archive and a query that
// matched no data. Retry is up to the user, never automatic.
var ErrDownload = errors.New("archive download failed")

// Client talks to the MAST (Mikulski Archive for Space Telescopes)
// Mashup API: resolve an object name to coordinates, cone-search for
// observations, download the science products as FITS files.
type Client struct {
	BaseURL    string
	Radius     float64 // cone search radius, degrees
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{
		BaseURL: "https://mast.stsci.edu",
		Radius:  0.05,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type observation struct {
	ObsCollection   string  `json:"obs_collection"`
	ObsID           string  `json:"obs_id"`
	DataproductType string  `json:"dataproduct_type"`
	IntentType      string  `json:"intentType"`
	DataURL         string  `json:"dataURL"`
	DataURI         string  `json:"dataURI"`
}

// DownloadDataset fetches up to maxFiles science exposures of the
// named object taken by the given telescope, writing them into
// outDir. It returns the paths of the downloaded files.
func (c *Client)DownloadDataset(ctx context.Context, objectName, telescope string, maxFiles int, outDir string) ([]string, error) {
	ra, dec, err := c.resolveName(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve '%s': %v", ErrDownload, objectName, err)
	}
	log.Printf("Resolved '%s' to ra=%f dec=%f\n", objectName, ra, dec)

	obs, err := c.coneSearch(ctx, ra, dec)
	if err != nil {
		return nil, fmt.Errorf("%w: cone search '%s': %v", ErrDownload, objectName, err)
	}

	picked := []observation{}
	for _, o := range obs {
		if o.ObsCollection != telescope { continue }
		if o.DataproductType != "image" { continue }
		if o.IntentType != "science"    { continue }
		if o.DataURL == "" && o.DataURI == "" { continue }
		picked = append(picked, o)
		if len(picked) >= maxFiles {
			break
		}
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("%w: no %s science images for '%s'", ErrDownload, telescope, objectName)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: mkdir '%s': %v", ErrDownload, outDir, err)
	}

	paths := []string{}
	for _, o := range picked {
		path := filepath.Join(outDir, o.ObsID+".fits")
		if err := c.downloadProduct(ctx, o, path); err != nil {
			return nil, fmt.Errorf("%w: product '%s': %v", ErrDownload, o.ObsID, err)
		}
		log.Printf("Downloaded %s\n", path)
		paths = append(paths, path)
	}

	return paths, nil
}

// invoke runs one Mashup request and decodes the response into out.
func (c *Client)invoke(ctx context.Context, service string, params map[string]interface{}, out interface{}) error {
	reqObj := map[string]interface{}{
		"service": service,
		"params":  params,
		"format":  "json",
	}
	reqJSON, err := json.Marshal(reqObj)
	if err != nil {
		return err
	}

	u := c.BaseURL + "/api/v0/invoke?request=" + url.QueryEscape(string(reqJSON))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mashup %s: http %d", service, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client)resolveName(ctx context.Context, objectName string) (float64, float64, error) {
	var result struct {
		ResolvedCoordinate []struct {
			RA   float64 `json:"ra"`
			Decl float64 `json:"decl"`
		} `json:"resolvedCoordinate"`
	}

	params := map[string]interface{}{"input": objectName, "format": "json"}
	if err := c.invoke(ctx, "Mast.Name.Lookup", params, &result); err != nil {
		return 0, 0, err
	}
	if len(result.ResolvedCoordinate) == 0 {
		return 0, 0, fmt.Errorf("name did not resolve")
	}
	return result.ResolvedCoordinate[0].RA, result.ResolvedCoordinate[0].Decl, nil
}

func (c *Client)coneSearch(ctx context.Context, ra, dec float64) ([]observation, error) {
	var result struct {
		Data []observation `json:"data"`
	}

	params := map[string]interface{}{"ra": ra, "dec": dec, "radius": c.Radius}
	if err := c.invoke(ctx, "Mast.Caom.Cone", params, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (c *Client)downloadProduct(ctx context.Context, o observation, path string) error {
	u := o.DataURL
	if u == "" {
		u = c.BaseURL + "/api/v0.1/Download/file?uri=" + url.QueryEscape(o.DataURI)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path) // don't leave a truncated FITS behind
		return err
	}
	return nil
}
