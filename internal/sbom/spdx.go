package sbom

import (
	"encoding/json"
	"time"

	"depcompliance/internal/model"
)

// Document is the SPDX 2.3 JSON shape.
type Document struct {
	SPDXID            string         `json:"SPDXID"`
	SPDXVersion       string         `json:"spdxVersion"`
	DataLicense       string         `json:"dataLicense"`
	Name              string         `json:"name"`
	DocumentNamespace string         `json:"documentNamespace"`
	CreationInfo      Creation       `json:"creationInfo"`
	Packages          []Package      `json:"packages"`
	Relationships     []Relationship `json:"relationships"`
}

type Creation struct {
	Created  string   `json:"created"`
	Creators []string `json:"creators"`
}

type Package struct {
	Name             string        `json:"name"`
	SPDXID           string        `json:"SPDXID"`
	VersionInfo      string        `json:"versionInfo"`
	DownloadLocation string        `json:"downloadLocation"`
	FilesAnalyzed    bool          `json:"filesAnalyzed"`
	LicenseDeclared  string        `json:"licenseDeclared"`
	LicenseConcluded string        `json:"licenseConcluded"`
	Description      string        `json:"description,omitempty"`
	ExternalRefs     []ExternalRef `json:"externalRefs,omitempty"`
}

type ExternalRef struct {
	Category string `json:"referenceCategory"`
	Type     string `json:"referenceType"`
	Locator  string `json:"referenceLocator"`
}

type Relationship struct {
	ElementID        string `json:"spdxElementId"`
	RelatedID        string `json:"relatedSpdxElement"`
	RelationshipType string `json:"relationshipType"`
}

const rootPackageID = "SPDXRef-RootPackage"

// SPDXDocument renders bom as an SPDX document: the project itself is the
// described root package and every dependency hangs off it via DEPENDS_ON.
func SPDXDocument(bom model.BillOfMaterials) Document {
	doc := Document{
		SPDXID:            bom.DocumentID,
		SPDXVersion:       bom.SPDXVersion,
		DataLicense:       bom.DataLicense,
		Name:              bom.ProjectName,
		DocumentNamespace: bom.DocumentNamespace,
		CreationInfo: Creation{
			Created:  bom.CreationInfo.Created.UTC().Format(time.RFC3339),
			Creators: bom.CreationInfo.Creators,
		},
		Packages:      make([]Package, 0, len(bom.Packages)+1),
		Relationships: make([]Relationship, 0, len(bom.Packages)+1),
	}

	projectLicense := bom.ProjectLicense
	if projectLicense == "" {
		projectLicense = model.NoAssertion
	}
	doc.Packages = append(doc.Packages, Package{
		Name:             bom.ProjectName,
		SPDXID:           rootPackageID,
		VersionInfo:      model.NoAssertion,
		DownloadLocation: model.NoAssertion,
		LicenseDeclared:  projectLicense,
		LicenseConcluded: projectLicense,
	})
	doc.Relationships = append(doc.Relationships, Relationship{
		ElementID:        bom.DocumentID,
		RelatedID:        rootPackageID,
		RelationshipType: "DESCRIBES",
	})

	for _, p := range bom.Packages {
		pkg := Package{
			Name:             p.Name,
			SPDXID:           p.SPDXID,
			VersionInfo:      p.Version,
			DownloadLocation: p.DownloadLocation,
			LicenseDeclared:  spdxLicense(p.NormalizedLicense, p.RiskBucket),
			LicenseConcluded: model.NoAssertion,
			Description:      p.Description,
		}
		if p.PURL != "" {
			pkg.ExternalRefs = []ExternalRef{{
				Category: "PACKAGE-MANAGER",
				Type:     "purl",
				Locator:  p.PURL,
			}}
		}
		doc.Packages = append(doc.Packages, pkg)
		doc.Relationships = append(doc.Relationships, Relationship{
			ElementID:        rootPackageID,
			RelatedID:        p.SPDXID,
			RelationshipType: "DEPENDS_ON",
		})
	}
	return doc
}

// MarshalSPDX returns the indented SPDX JSON for bom.
func MarshalSPDX(bom model.BillOfMaterials) ([]byte, error) {
	return json.MarshalIndent(SPDXDocument(bom), "", "  ")
}

// spdxLicense keeps only identifiers SPDX tools can parse; free text that
// did not classify is reported as NOASSERTION.
func spdxLicense(id string, bucket model.RiskBucket) string {
	if id == "" || bucket == model.BucketUnknown {
		return model.NoAssertion
	}
	return id
}
