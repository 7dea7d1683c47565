package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/caseledger/caseledger/internal/access"
)

// Client talks to the remote record store over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client for the store rooted at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Repository exposes the client as a Repository.
func (c *Client) Repository() Repository {
	return Repository{
		Offices:    &remoteCollection[Office, wireOffice]{c: c, path: "/Offices", toWire: officeToWire, fromWire: officeFromWire},
		Fallen:     &remoteCollection[FallenPerson, wireFallen]{c: c, path: "/Martyrs", toWire: fallenToWire, fromWire: fallenFromWire},
		Disability: &remoteCollection[DisabilityCase, wireDisability]{c: c, path: "/Amputees", toWire: disabilityToWire, fromWire: disabilityFromWire},
		Dependents: &remoteCollection[Dependent, wireDependent]{c: c, path: "/Beneficiaries", toWire: dependentToWire, fromWire: dependentFromWire},
		Actors:     &remoteCollection[access.Actor, wireActor]{c: c, path: "/Users", toWire: actorToWire, fromWire: actorFromWire},
		ActorAdmin: c,
	}
}

// UpdatePermissions replaces the stored capability matrix of an actor.
func (c *Client) UpdatePermissions(ctx context.Context, id string, m access.Matrix) error {
	body := struct {
		Permissions access.Matrix `json:"permissions"`
	}{Permissions: m}
	return c.do(ctx, http.MethodPut, "/Users/"+url.PathEscape(id)+"/Permissions", body, nil)
}

// UpdateStatus changes the account status of an actor.
func (c *Client) UpdateStatus(ctx context.Context, id string, status access.Status) error {
	body := struct {
		Status string `json:"status"`
	}{Status: actorStatusLabel(status)}
	return c.do(ctx, http.MethodPatch, "/Users/"+url.PathEscape(id)+"/Status", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("records: %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

type remoteCollection[T any, W any] struct {
	c        *Client
	path     string
	toWire   func(T) W
	fromWire func(W) T
}

func (r *remoteCollection[T, W]) List(ctx context.Context) ([]T, error) {
	var wire []W
	if err := r.c.do(ctx, http.MethodGet, r.path, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(wire))
	for _, w := range wire {
		out = append(out, r.fromWire(w))
	}
	return out, nil
}

func (r *remoteCollection[T, W]) Create(ctx context.Context, item T) (T, error) {
	var created W
	if err := r.c.do(ctx, http.MethodPost, r.path, r.toWire(item), &created); err != nil {
		var zero T
		return zero, err
	}
	return r.fromWire(created), nil
}

func (r *remoteCollection[T, W]) Update(ctx context.Context, id string, item T) (T, error) {
	var updated W
	if err := r.c.do(ctx, http.MethodPut, r.path+"/"+url.PathEscape(id), r.toWire(item), &updated); err != nil {
		var zero T
		return zero, err
	}
	return r.fromWire(updated), nil
}

func (r *remoteCollection[T, W]) Delete(ctx context.Context, id string) error {
	return r.c.do(ctx, http.MethodDelete, r.path+"/"+url.PathEscape(id), nil, nil)
}

// Wire shapes of the remote store.

type wireOffice struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Location             string   `json:"location"`
	ContactPerson        string   `json:"contactPerson"`
	Phone                string   `json:"phone"`
	RequiredDocsMartyrs  []string `json:"requiredDocsMartyrs"`
	RequiredDocsAmputees []string `json:"requiredDocsAmputees"`
}

type wireFallen struct {
	ID              string          `json:"id"`
	FullName        string          `json:"fullName"`
	NationalID      string          `json:"nationalId"`
	DateOfMartyrdom string          `json:"dateOfMartyrdom"`
	Rank            string          `json:"rank"`
	Office          string          `json:"office"`
	Status          string          `json:"status"`
	LastGrantAmount decimal.Decimal `json:"lastGrantAmount"`
	Barcode         string          `json:"barcode,omitempty"`
}

type wireDisability struct {
	ID                   string          `json:"id"`
	FullName             string          `json:"fullName"`
	NationalID           string          `json:"nationalId"`
	InjuryType           string          `json:"injuryType"`
	DisabilityPercentage int             `json:"disabilityPercentage"`
	Office               string          `json:"office"`
	LastPaymentDate      string          `json:"lastPaymentDate"`
	BeneficiaryCount     int             `json:"beneficiaryCount"`
	Status               string          `json:"status"`
	LastGrantAmount      decimal.Decimal `json:"lastGrantAmount"`
	Barcode              string          `json:"barcode,omitempty"`
}

type wireDependent struct {
	ID              string          `json:"id"`
	FullName        string          `json:"fullName"`
	NationalID      string          `json:"nationalId"`
	Relationship    string          `json:"relationship"`
	CaseCategory    string          `json:"caseCategory,omitempty"`
	CaseID          string          `json:"caseId,omitempty"`
	MartyrName      string          `json:"martyrName"`
	BenefitAmount   decimal.Decimal `json:"benefitAmount"`
	LastGrantAmount decimal.Decimal `json:"lastGrantAmount"`
	Status          string          `json:"status"`
	Barcode         string          `json:"barcode,omitempty"`
}

type wireActor struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Username    string        `json:"username"`
	Role        string        `json:"role"`
	OfficeID    string        `json:"officeId"`
	OfficeName  string        `json:"officeName"`
	AccessScope string        `json:"accessScope"`
	Status      string        `json:"status"`
	Permissions access.Matrix `json:"permissions"`
}

func officeToWire(o Office) wireOffice {
	return wireOffice{
		ID: o.ID, Name: o.Name, Location: o.Location, ContactPerson: o.ContactPerson, Phone: o.Phone,
		RequiredDocsMartyrs: o.RequiredDocsFallen, RequiredDocsAmputees: o.RequiredDocsDisability,
	}
}

func officeFromWire(w wireOffice) Office {
	return Office{
		ID: w.ID, Name: w.Name, Location: w.Location, ContactPerson: w.ContactPerson, Phone: w.Phone,
		RequiredDocsFallen: w.RequiredDocsMartyrs, RequiredDocsDisability: w.RequiredDocsAmputees,
	}
}

func fallenToWire(f FallenPerson) wireFallen {
	return wireFallen{
		ID: f.ID, FullName: f.FullName, NationalID: f.NationalID, DateOfMartyrdom: FormatDate(f.EventDate),
		Rank: f.Rank, Office: f.Office, Status: f.Status.Label(), LastGrantAmount: f.LastGrantAmount, Barcode: f.Barcode,
	}
}

func fallenFromWire(w wireFallen) FallenPerson {
	date, _ := ParseDate(w.DateOfMartyrdom)
	return FallenPerson{
		ID: w.ID, FullName: w.FullName, NationalID: w.NationalID, EventDate: date, Rank: w.Rank,
		Office: w.Office, Status: statusFromWire(w.Status), LastGrantAmount: w.LastGrantAmount, Barcode: w.Barcode,
	}
}

func disabilityToWire(d DisabilityCase) wireDisability {
	return wireDisability{
		ID: d.ID, FullName: d.FullName, NationalID: d.NationalID, InjuryType: d.InjuryType,
		DisabilityPercentage: d.DisabilityPercentage, Office: d.Office, LastPaymentDate: FormatDate(d.LastPaymentDate),
		BeneficiaryCount: d.BeneficiaryCount, Status: d.Status.Label(), LastGrantAmount: d.LastGrantAmount, Barcode: d.Barcode,
	}
}

func disabilityFromWire(w wireDisability) DisabilityCase {
	date, _ := ParseDate(w.LastPaymentDate)
	return DisabilityCase{
		ID: w.ID, FullName: w.FullName, NationalID: w.NationalID, InjuryType: w.InjuryType,
		DisabilityPercentage: w.DisabilityPercentage, Office: w.Office, LastPaymentDate: date,
		BeneficiaryCount: w.BeneficiaryCount, Status: statusFromWire(w.Status), LastGrantAmount: w.LastGrantAmount, Barcode: w.Barcode,
	}
}

func dependentToWire(d Dependent) wireDependent {
	return wireDependent{
		ID: d.ID, FullName: d.FullName, NationalID: d.NationalID, Relationship: d.Relationship,
		CaseCategory: string(d.CaseCategory), CaseID: d.CaseID, MartyrName: d.CaseName, BenefitAmount: d.BenefitAmount,
		LastGrantAmount: d.LastGrantAmount, Status: d.Status.Label(), Barcode: d.Barcode,
	}
}

func dependentFromWire(w wireDependent) Dependent {
	return Dependent{
		ID: w.ID, FullName: w.FullName, NationalID: w.NationalID, Relationship: w.Relationship,
		CaseCategory: access.Category(w.CaseCategory), CaseID: w.CaseID, CaseName: w.MartyrName, BenefitAmount: w.BenefitAmount,
		LastGrantAmount: w.LastGrantAmount, Status: statusFromWire(w.Status), Barcode: w.Barcode,
	}
}

func actorToWire(a access.Actor) wireActor {
	return wireActor{
		ID: a.ID, Name: a.Name, Username: a.Username, Role: a.Role.Label(), OfficeID: a.OfficeID,
		OfficeName: a.OfficeName, AccessScope: string(a.Scope), Status: actorStatusLabel(a.Status), Permissions: a.Capabilities,
	}
}

func actorFromWire(w wireActor) access.Actor {
	return access.Actor{
		ID: w.ID, Name: w.Name, Username: w.Username, Role: access.ParseRole(w.Role), OfficeID: w.OfficeID,
		OfficeName: w.OfficeName, Scope: access.ParseScope(w.AccessScope), Status: access.ParseStatus(w.Status),
		Capabilities: w.Permissions,
	}
}

func statusFromWire(raw string) Status {
	if s, ok := ParseStatus(raw); ok {
		return s
	}
	return StatusInProgress
}

func actorStatusLabel(s access.Status) string {
	if s == access.StatusDisabled {
		return "معطل"
	}
	return "نشط"
}
