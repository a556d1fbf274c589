package dockerengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/containerd/errdefs"
	"github.com/distribution/reference"
	dockercommand "github.com/docker/cli/cli/command"
	dockerconfig "github.com/docker/cli/cli/config"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/pkg/jsonmessage"
)

// ExpandImageRef normalizes ref to a fully-qualified reference (registry
// host and library namespace filled in, tag defaulted to "latest"), per
// §4.6 step 3's "expanding to a full registry path when no namespace
// prefix is present".
func ExpandImageRef(ref string) (string, error) {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", fmt.Errorf("parse image reference %q: %w", ref, err)
	}
	named = reference.TagNameOnly(named)
	return named.String(), nil
}

// Pull pulls ref, draining the progress stream and returning once the
// image is fully pulled or an error occurs. It attaches credentials from
// the operator's local Docker config file when available, since the
// deployment engine runs on the operator's machine rather than the target
// host.
func (c *Client) Pull(ctx context.Context, ref string) error {
	expanded, err := ExpandImageRef(ref)
	if err != nil {
		return err
	}

	opts := image.PullOptions{}
	if auth, authErr := localRegistryAuth(expanded); authErr == nil {
		opts.RegistryAuth = auth
	}

	body, err := c.ImagePull(ctx, expanded, opts)
	if err != nil {
		return fmt.Errorf("pull image %q: %w", expanded, err)
	}
	defer func() { _ = body.Close() }()

	decoder := json.NewDecoder(body)
	for {
		var msg jsonmessage.JSONMessage
		if err = decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode pull progress for %q: %w", expanded, err)
		}
		if msg.Error != nil {
			return fmt.Errorf("pull image %q: %s", expanded, msg.Error.Message)
		}
	}
}

// localRegistryAuth retrieves the encoded auth token for ref from the
// operator's local Docker config file, returning an error if no
// credentials were found so callers can fall back to an anonymous pull.
func localRegistryAuth(ref string) (string, error) {
	cfg := dockerconfig.LoadDefaultConfigFile(os.Stderr)
	encoded, err := dockercommand.RetrieveAuthTokenFromImage(cfg, ref)
	if err != nil {
		return "", err
	}
	auth, err := registry.DecodeAuthConfig(encoded)
	if err != nil {
		return "", fmt.Errorf("decode auth config: %w", err)
	}
	if auth.Username == "" && auth.Password == "" && auth.Auth == "" &&
		auth.IdentityToken == "" && auth.RegistryToken == "" {
		return "", errors.New("no credentials found")
	}
	return encoded, nil
}

// ImageRef identifies a locally-present image and when it was created,
// used to rank images for pruning.
type ImageRef struct {
	ID      string
	Tags    []string
	Created time.Time
}

// ImagesForRepository lists locally-present images whose repository
// matches ref's repository (ignoring tag), newest first.
func (c *Client) ImagesForRepository(ctx context.Context, ref string) ([]ImageRef, error) {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return nil, fmt.Errorf("parse image reference %q: %w", ref, err)
	}
	repo := named.Name()

	summaries, err := c.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	var refs []ImageRef
	for _, s := range summaries {
		for _, tag := range s.RepoTags {
			taggedNamed, parseErr := reference.ParseNormalizedNamed(tag)
			if parseErr != nil {
				continue
			}
			if taggedNamed.Name() != repo {
				continue
			}
			refs = append(refs, ImageRef{
				ID:      s.ID,
				Tags:    s.RepoTags,
				Created: time.Unix(s.Created, 0),
			})
			break
		}
	}

	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && refs[j].Created.After(refs[j-1].Created); j-- {
			refs[j], refs[j-1] = refs[j-1], refs[j]
		}
	}
	return refs, nil
}

// RemoveImage removes an image by ID, ignoring not-found errors.
func (c *Client) RemoveImage(ctx context.Context, id string) error {
	if _, err := c.ImageRemove(ctx, id, image.RemoveOptions{}); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove image %q: %w", id, err)
	}
	return nil
}

// PruneDangling removes dangling (untagged) images, returning the amount
// of space reclaimed.
func (c *Client) PruneDangling(ctx context.Context) (uint64, error) {
	args := filters.NewArgs(filters.Arg("dangling", "true"))
	report, err := c.ImagesPrune(ctx, args)
	if err != nil {
		return 0, fmt.Errorf("prune dangling images: %w", err)
	}
	return report.SpaceReclaimed, nil
}
