package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocKind names a document template. Values are the template titles shown
// to the user and are stored verbatim in Document.Kind.
type DocKind string

const (
	KindBefund           DocKind = "Befund (kurz)"
	KindVerlaufsnotiz    DocKind = "Verlaufsnotiz"
	KindVereinbarung     DocKind = "Vereinbarung/Entbindung"
	KindUebergabe        DocKind = "Übergabebericht"
	KindEbene2           DocKind = "Ebene 2: Vertrauliche Inhalte (nur psychologisch)"
	KindEbene3           DocKind = "Ebene 3: Resonanz / Arbeitshypothesen (nur für mich)"
	KindAngstZwang       DocKind = "Angst & Zwang – Fokus (Patientmanagement/Schnittstellen/Selbstmanagement)"
	KindChecklisteVernet DocKind = "Checkliste Vernetzung (Akutpsychiatrie)"
	KindTeamBesprechung  DocKind = "Team-Besprechung: Agenda & Ergebnis"
	KindFreeText         DocKind = "Freitext"
)

var kindOrder = []DocKind{
	KindBefund,
	KindVerlaufsnotiz,
	KindVereinbarung,
	KindUebergabe,
	KindEbene2,
	KindEbene3,
	KindAngstZwang,
	KindChecklisteVernet,
	KindTeamBesprechung,
}

var kindDescriptions = map[DocKind]string{
	KindBefund:           "Strukturdaten + klinisch-psychologischer Befund in klaren Feldern.",
	KindVerlaufsnotiz:    "Kurz und schnell: Thema, Intervention, Verlauf, nächste Schritte.",
	KindVereinbarung:     "Welche Infos dürfen wohin? (Team/Vernetzung) + Dokumentation.",
	KindUebergabe:        "Deskriptiv, zielorientiert, für Transfer (ambulant/stationär).",
	KindEbene2:           "Geheimnisse getrennt dokumentieren (nicht für interprofessionellen Dekurs).",
	KindEbene3:           "Eigene Resonanz, Hypothesen, Reflexion (nicht weitergeben).",
	KindAngstZwang:       "Brainstorming-Vorlage für die Übung (Angst/Zwang).",
	KindChecklisteVernet: "Fragenkatalog: Aufnahmeprozedere, Ethikprüfung, was braucht Patient:in?",
	KindTeamBesprechung:  "Effiziente Besprechung: Agenda, Beschlüsse, Verantwortliche, Doku.",
}

// Kinds lists the document templates in display order.
func Kinds() []DocKind {
	return append([]DocKind(nil), kindOrder...)
}

// Describe returns the one-line description of kind, or "" when unknown.
func Describe(kind DocKind) string {
	return kindDescriptions[kind]
}

// TypedData is implemented by every kind-specific document body.
type TypedData interface {
	Kind() DocKind
}

type Diagnostik struct {
	Verfahren  string `json:"verfahren"`
	Ergebnisse string `json:"ergebnisse"`
}

type Befund struct {
	Datum          string     `json:"datum"`
	Setting        string     `json:"setting"`
	Anlass         string     `json:"anlass"`
	Diagnostik     Diagnostik `json:"diagnostik"`
	Symptome       string     `json:"symptome"`
	Ressourcen     string     `json:"ressourcen"`
	Ziele          string     `json:"ziele"`
	Interventionen string     `json:"interventionen"`
	Vereinbarungen string     `json:"vereinbarungen"`
	Empfehlungen   string     `json:"empfehlungen"`
	Ebene2Hinweis  string     `json:"ebene2_hinweis"`
	Ebene3Hinweis  string     `json:"ebene3_hinweis"`
}

type Verlaufsnotiz struct {
	Datum            string `json:"datum"`
	Thema            string `json:"thema"`
	Beobachtung      string `json:"beobachtung"`
	Intervention     string `json:"intervention"`
	Reaktion         string `json:"reaktion"`
	NaechsteSchritte string `json:"naechste_schritte"`
	Risiko           string `json:"risiko"`
}

type Vereinbarung struct {
	Datum         string `json:"datum"`
	Zweck         string `json:"zweck"`
	WasDarfWeiter string `json:"was_darf_weiter"`
	AnWen         string `json:"an_wen"`
	Grenzen       string `json:"grenzen"`
	Dokumente     string `json:"dokumente"`
	Notizen       string `json:"notizen"`
}

type Uebergabebericht struct {
	Datum               string `json:"datum"`
	Empfaenger          string `json:"empfaenger"`
	Kurzbeschreibung    string `json:"kurzbeschreibung"`
	DiagnoseDeskriptiv  string `json:"diagnose_deskriptiv"`
	RelevanteSymptome   string `json:"relevante_symptome"`
	AusloeserKontext    string `json:"ausloeser_kontext"`
	BisherigeMassnahmen string `json:"bisherige_massnahmen"`
	Wirksam             string `json:"wirksam"`
	NichtWirksam        string `json:"nicht_wirksam"`
	RisikoSchutz        string `json:"risiko_schutz"`
	EmpfehlungTransfer  string `json:"empfehlung_transfer"`
	WasNichtEnthalten   string `json:"was_nicht_enthalten"`
}

type Ebene2 struct {
	Datum                     string `json:"datum"`
	Vertraulich               string `json:"vertraulich"`
	Inhalte                   string `json:"inhalte"`
	WarumGeheimnis            string `json:"warum_geheimnis"`
	WasTeamTrotzdemWissenMuss string `json:"was_team_trotzdem_wissen_muss"`
	Vereinbarung              string `json:"vereinbarung"`
}

type Ebene3 struct {
	Datum                    string `json:"datum"`
	Resonanz                 string `json:"resonanz"`
	Arbeitshypothesen        string `json:"arbeitshypothesen"`
	EigeneGrenzenMarker      string `json:"eigene_grenzen_marker"`
	NaechsterSchrittFuerMich string `json:"naechster_schritt_fuer_mich"`
	IntervisionSupervision   string `json:"intervision_supervision"`
}

type Patientmanagement struct {
	Struktur      string `json:"struktur"`
	Sicherheit    string `json:"sicherheit"`
	Dokumentation string `json:"dokumentation"`
}

type Schnittstellen struct {
	ArztFacharzt string `json:"arzt_facharzt"`
	TeamPflege   string `json:"team_pflege"`
	Vernetzung   string `json:"vernetzung"`
}

type Selbstmanagement struct {
	Marker      string `json:"marker"`
	Grenzen     string `json:"grenzen"`
	Intervision string `json:"intervision"`
}

type AngstZwangFokus struct {
	Stoerungsbild     string            `json:"stoerungsbild"`
	Patientmanagement Patientmanagement `json:"patientmanagement"`
	Schnittstellen    Schnittstellen    `json:"schnittstellen"`
	Selbstmanagement  Selbstmanagement  `json:"selbstmanagement"`
	KonkreteBeispiele string            `json:"konkrete_beispiele"`
}

type Fragen struct {
	Aufnahme                 string `json:"aufnahme"`
	WasMitnehmen             string `json:"was_mitnehmen"`
	FreiwilligVsUnfreiwillig string `json:"freiwillig_vs_unfreiwillig"`
	EthikPruefung            string `json:"ethik_pruefung"`
	Tag2                     string `json:"tag2"`
	Kommunikation            string `json:"kommunikation"`
}

type ChecklisteVernetzung struct {
	Klinik  string `json:"klinik"`
	Kontakt string `json:"kontakt"`
	Fragen  Fragen `json:"fragen"`
	Notizen string `json:"notizen"`
}

type TeamBesprechung struct {
	Datum          string `json:"datum"`
	Teilnehmende   string `json:"teilnehmende"`
	Agenda         string `json:"agenda"`
	FallBesprochen string `json:"fall_besprochen"`
	Beschluesse    string `json:"beschluesse"`
	WerMachtWas    string `json:"wer_macht_was"`
	Dokumentation  string `json:"dokumentation"`
	Risiken        string `json:"risiken"`
}

type FreeText struct {
	Text string `json:"text"`
}

func (Befund) Kind() DocKind               { return KindBefund }
func (Verlaufsnotiz) Kind() DocKind        { return KindVerlaufsnotiz }
func (Vereinbarung) Kind() DocKind         { return KindVereinbarung }
func (Uebergabebericht) Kind() DocKind     { return KindUebergabe }
func (Ebene2) Kind() DocKind               { return KindEbene2 }
func (Ebene3) Kind() DocKind               { return KindEbene3 }
func (AngstZwangFokus) Kind() DocKind      { return KindAngstZwang }
func (ChecklisteVernetzung) Kind() DocKind { return KindChecklisteVernet }
func (TeamBesprechung) Kind() DocKind      { return KindTeamBesprechung }
func (FreeText) Kind() DocKind             { return KindFreeText }

// Wrap builds a document for patientID whose Kind and Data come from v.
func Wrap[T TypedData](title, patientID string, v T) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Document{}, err
	}
	return Document{
		PatientID:   patientID,
		Kind:        v.Kind(),
		Title:       title,
		Data:        b,
		Attachments: []Attachment{},
	}, nil
}

// newTyped returns a zero value of the body type for kind, or nil when
// the kind is not a known template.
func newTyped(kind DocKind) TypedData {
	switch kind {
	case KindBefund:
		return &Befund{}
	case KindVerlaufsnotiz:
		return &Verlaufsnotiz{}
	case KindVereinbarung:
		return &Vereinbarung{}
	case KindUebergabe:
		return &Uebergabebericht{}
	case KindEbene2:
		return &Ebene2{}
	case KindEbene3:
		return &Ebene3{}
	case KindAngstZwang:
		return &AngstZwangFokus{}
	case KindChecklisteVernet:
		return &ChecklisteVernetzung{}
	case KindTeamBesprechung:
		return &TeamBesprechung{}
	case KindFreeText:
		return &FreeText{}
	}
	return nil
}

// Unwrap decodes Data into the typed body for the document's kind.
// Documents of an unknown kind decode into map[string]any.
func (d Document) Unwrap() (any, error) {
	data := d.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	ptr := newTyped(d.Kind)
	if ptr == nil {
		m := map[string]any{}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %q data: %w", d.Kind, err)
		}
		return m, nil
	}
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("decode %q data: %w", d.Kind, err)
	}
	return deref(ptr), nil
}

func deref(v TypedData) TypedData {
	switch t := v.(type) {
	case *Befund:
		return *t
	case *Verlaufsnotiz:
		return *t
	case *Vereinbarung:
		return *t
	case *Uebergabebericht:
		return *t
	case *Ebene2:
		return *t
	case *Ebene3:
		return *t
	case *AngstZwangFokus:
		return *t
	case *ChecklisteVernetzung:
		return *t
	case *TeamBesprechung:
		return *t
	case *FreeText:
		return *t
	}
	return v
}

// NewData returns the prefilled body for a new document of kind.
// today is used for date fields. Unknown kinds get a free-text body.
func NewData(kind DocKind, today time.Time) TypedData {
	datum := today.Format(time.DateOnly)
	switch kind {
	case KindBefund:
		return Befund{
			Datum:         datum,
			Setting:       "ambulant / stationär",
			Ebene2Hinweis: "Vertrauliche Inhalte NICHT hier (siehe Ebene-2-Dokument).",
			Ebene3Hinweis: "Eigene Resonanz NICHT hier (siehe Ebene-3-Dokument).",
		}
	case KindVerlaufsnotiz:
		return Verlaufsnotiz{
			Datum:  datum,
			Risiko: "keine / Hinweis / akut (dann eigenes Vorgehen dokumentieren)",
		}
	case KindVereinbarung:
		return Vereinbarung{
			Datum:         datum,
			Zweck:         "Team / Vernetzung / Bericht",
			WasDarfWeiter: "nur deskriptiv (Symptomebene) / konkrete Punkte",
			Grenzen:       "keine Details zu Geheimnissen / Inhaltebene nur wenn notwendig und vereinbart",
			Dokumente:     "Unterschrift eingescannt als Anhang hinzufügen",
		}
	case KindUebergabe:
		return Uebergabebericht{
			Datum:             datum,
			WasNichtEnthalten: "Keine Inhaltebene / Geheimnisse; nur Relevantes für Gesamtbehandlung.",
		}
	case KindEbene2:
		return Ebene2{
			Datum:                     datum,
			Vertraulich:               "JA – nicht in interprofessionellen Dekurs übernehmen",
			WasTeamTrotzdemWissenMuss: "Symptomebene / Schutzfaktoren / Trigger ohne Details",
			Vereinbarung:              "Wurde mit Patient:in besprochen: ja/nein",
		}
	case KindEbene3:
		return Ebene3{
			Datum:                  datum,
			IntervisionSupervision: "geplant / nötig / erledigt",
		}
	case KindAngstZwang:
		return AngstZwangFokus{
			Stoerungsbild: "Angst / Zwang",
			Patientmanagement: Patientmanagement{
				Struktur:      "Regelmäßigkeit, klare Rahmen, kurze Infos, schriftliche Mini-Schritte",
				Sicherheit:    "Panik/Entgleisung: Plan, Notfallnummern, klare Verantwortungen",
				Dokumentation: "deskriptiv + Ziele; Geheimnisse getrennt; Risiko sauber dokumentieren",
			},
			Schnittstellen: Schnittstellen{
				ArztFacharzt: "früh Kontakt (z.B. bei starker Anspannung/Komorbidität); Medikationsinfos deskriptiv",
				TeamPflege:   "was müssen sie wissen (Trigger/Alarmzeichen) ohne Inhaltebene",
				Vernetzung:   "Akutpsychiatrie, Hausarzt, Psychiater, Reha, Notfallplan",
			},
			Selbstmanagement: Selbstmanagement{
				Marker:      "z.B. eigene Anspannung bei Expositionen, „Retter“-Impuls, Überverantwortung",
				Grenzen:     "keine spontane Zusage/Übernahme; klare Erreichbarkeit",
				Intervision: "bei schwierigen Expositionen / Suizidabklärung / Eskalation",
			},
		}
	case KindChecklisteVernet:
		return ChecklisteVernetzung{
			Fragen: Fragen{
				Aufnahme:                 "Wie läuft Aufnahme ab? (Ablauf, Wartezeit, wer spricht wann?)",
				WasMitnehmen:             "Was mitnehmen? (Dokumente, Kleidung, Medikamente, …)",
				FreiwilligVsUnfreiwillig: "Wie wird entschieden? Wer informiert? Rechte?",
				EthikPruefung:            "Wann findet Überprüfung statt, ob Unterbringung noch notwendig ist?",
				Tag2:                     "Was erleben Patient:innen am 2. Tag? (Visite, Gespräch, Tagesstruktur)",
				Kommunikation:            "Wie kann Praxis Infos geben? Was wird zurückgemeldet?",
			},
		}
	case KindTeamBesprechung:
		return TeamBesprechung{
			Datum:          datum,
			Agenda:         "1) …\n2) …\n3) …",
			FallBesprochen: "anonym / mit Einwilligung",
			Dokumentation:  "Was kommt in interprofessionellen Dekurs (kurz & deskriptiv)?",
		}
	}
	return FreeText{}
}

// NewDocument returns a template-filled document of kind for patientID.
// The title defaults to the kind name.
func NewDocument(kind DocKind, patientID string, today time.Time) (Document, error) {
	title := string(kind)
	if title == "" {
		title = string(KindFreeText)
	}
	return Wrap(title, patientID, NewData(kind, today))
}
