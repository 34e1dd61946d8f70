package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/fetch-scheduler/pkg/client"
)

// OMDB answers errors with HTTP 200 and Response "False".
var (
	// ErrOMDBLimitReached is returned once the daily request quota is used up.
	ErrOMDBLimitReached = errors.New("omdb: request limit reached")

	// ErrOMDBNotFound is returned for unknown ids.
	ErrOMDBNotFound = errors.New("omdb: not found")
)

// Ratings are the scores OMDB aggregates for one title. Empty strings mean
// the source had no value.
type Ratings struct {
	IMDBID         string `json:"imdb_id"`
	IMDB           string `json:"imdb"`
	IMDBVotes      string `json:"imdb_votes"`
	Metascore      string `json:"metascore"`
	RottenTomatoes string `json:"rotten_tomatoes"`
	Popcornmeter   string `json:"popcornmeter"`
}

type omdbResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	IMDBRating string `json:"imdbRating"`
	IMDBVotes  string `json:"imdbVotes"`
	Metascore  string `json:"Metascore"`
	Ratings    []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
}

// OMDBRatings fetches the ratings of imdbID through c.
func OMDBRatings(ctx context.Context, c *client.Client, imdbID string) (Ratings, error) {
	if imdbID == "" {
		return Ratings{}, fmt.Errorf("omdb: empty imdb id")
	}

	var data omdbResponse
	if err := c.GetJSON(ctx, "/?i="+url.QueryEscape(imdbID), &data); err != nil {
		return Ratings{}, err
	}

	if data.Response == "False" {
		switch {
		case strings.Contains(data.Error, "limit reached"):
			return Ratings{}, ErrOMDBLimitReached
		case strings.Contains(strings.ToLower(data.Error), "not found"):
			return Ratings{}, fmt.Errorf("%w: %s", ErrOMDBNotFound, imdbID)
		default:
			return Ratings{}, fmt.Errorf("omdb: %s", data.Error)
		}
	}

	r := Ratings{
		IMDBID:    imdbID,
		IMDB:      na(data.IMDBRating),
		IMDBVotes: na(data.IMDBVotes),
		Metascore: na(data.Metascore),
	}
	for _, src := range data.Ratings {
		if src.Source == "Rotten Tomatoes" {
			r.RottenTomatoes = src.Value
		}
	}
	// OMDB has no audience score; the IMDB rating scaled to percent stands in.
	if score, err := strconv.ParseFloat(r.IMDB, 64); err == nil {
		r.Popcornmeter = strconv.Itoa(int(score*10+0.5)) + "%"
	}
	return r, nil
}

func na(s string) string {
	if s == "N/A" {
		return ""
	}
	return s
}
