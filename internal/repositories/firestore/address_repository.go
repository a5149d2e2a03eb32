package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/timberline/api/internal/domain"
	pfirestore "github.com/timberline/api/internal/platform/firestore"
	"github.com/timberline/api/internal/repositories"
)

const addressSubcollection = "addresses"

type addressDocument struct {
	Label     string    `firestore:"label,omitempty"`
	Type      string    `firestore:"type"`
	Name      string    `firestore:"name"`
	Line1     string    `firestore:"line1"`
	Line2     string    `firestore:"line2,omitempty"`
	City      string    `firestore:"city"`
	County    string    `firestore:"county,omitempty"`
	Postcode  string    `firestore:"postcode"`
	Country   string    `firestore:"country"`
	Phone     string    `firestore:"phone,omitempty"`
	IsDefault bool      `firestore:"isDefault"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// AddressRepository stores addresses in a subcollection under the owning
// user document.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

func (r *AddressRepository) collection(ctx context.Context, ownerID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("address repository not initialised")
	}
	uid, err := requireID("address", ownerID)
	if err != nil {
		return nil, err
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(userCollection).Doc(uid).Collection(addressSubcollection), nil
}

// Insert creates the address. The first address an owner saves becomes the
// default automatically.
func (r *AddressRepository) Insert(ctx context.Context, address domain.Address) (domain.Address, error) {
	coll, err := r.collection(ctx, address.OwnerID)
	if err != nil {
		return domain.Address{}, err
	}
	id, err := requireID("address", address.ID)
	if err != nil {
		return domain.Address{}, err
	}

	existing, err := r.ListByOwner(ctx, address.OwnerID)
	if err != nil {
		return domain.Address{}, err
	}
	if len(existing) == 0 {
		address.IsDefault = true
	}

	doc := addressToDocument(address)
	if _, err := coll.Doc(id).Create(ctx, doc); err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.insert", err)
	}
	if address.IsDefault && len(existing) > 0 {
		return r.SetDefault(ctx, address.OwnerID, id)
	}
	return addressFromDocument(id, address.OwnerID, doc), nil
}

// Update overwrites the address document.
func (r *AddressRepository) Update(ctx context.Context, address domain.Address) (domain.Address, error) {
	coll, err := r.collection(ctx, address.OwnerID)
	if err != nil {
		return domain.Address{}, err
	}
	id, err := requireID("address", address.ID)
	if err != nil {
		return domain.Address{}, err
	}

	current, err := r.FindByID(ctx, address.OwnerID, id)
	if err != nil {
		return domain.Address{}, err
	}
	address.IsDefault = current.IsDefault
	address.CreatedAt = current.CreatedAt

	doc := addressToDocument(address)
	if _, err := coll.Doc(id).Set(ctx, doc); err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.update", err)
	}
	return addressFromDocument(id, address.OwnerID, doc), nil
}

// Delete removes the address document.
func (r *AddressRepository) Delete(ctx context.Context, ownerID string, addressID string) error {
	coll, err := r.collection(ctx, ownerID)
	if err != nil {
		return err
	}
	id, err := requireID("address", addressID)
	if err != nil {
		return err
	}
	if _, err := coll.Doc(id).Delete(ctx); err != nil {
		return pfirestore.WrapError("addresses.delete", err)
	}
	return nil
}

// FindByID loads a single address.
func (r *AddressRepository) FindByID(ctx context.Context, ownerID string, addressID string) (domain.Address, error) {
	coll, err := r.collection(ctx, ownerID)
	if err != nil {
		return domain.Address{}, err
	}
	id, err := requireID("address", addressID)
	if err != nil {
		return domain.Address{}, err
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.get", err)
	}
	var doc addressDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Address{}, fmt.Errorf("firestore addresses decode %s: %w", id, err)
	}
	return addressFromDocument(id, strings.TrimSpace(ownerID), doc), nil
}

// ListByOwner returns every address the owner has saved, default first.
func (r *AddressRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Address, error) {
	coll, err := r.collection(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("isDefault", firestore.Desc).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var addresses []domain.Address
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("addresses.list", err)
		}
		var doc addressDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore addresses decode %s: %w", snap.Ref.ID, err)
		}
		addresses = append(addresses, addressFromDocument(snap.Ref.ID, strings.TrimSpace(ownerID), doc))
	}
	return addresses, nil
}

// SetDefault marks one address as the owner's default and clears the flag on
// every other address covering the same use inside the same transaction. A
// default shipping address survives when a billing-only address becomes the
// default, and vice versa; a "both" address displaces defaults of every type.
func (r *AddressRepository) SetDefault(ctx context.Context, ownerID string, addressID string) (domain.Address, error) {
	coll, err := r.collection(ctx, ownerID)
	if err != nil {
		return domain.Address{}, err
	}
	id, err := requireID("address", addressID)
	if err != nil {
		return domain.Address{}, err
	}

	now := time.Now().UTC()
	var updated domain.Address
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		target := coll.Doc(id)
		snap, err := tx.Get(target)
		if err != nil {
			return err
		}
		var doc addressDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore addresses decode %s: %w", id, err)
		}
		targetType := domain.AddressType(doc.Type)

		iter := tx.Documents(coll.Where("isDefault", "==", true))
		defer iter.Stop()
		var others []*firestore.DocumentRef
		for {
			other, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			if other.Ref.ID == id {
				continue
			}
			var otherDoc addressDocument
			if err := other.DataTo(&otherDoc); err != nil {
				return fmt.Errorf("firestore addresses decode %s: %w", other.Ref.ID, err)
			}
			if addressTypesOverlap(targetType, domain.AddressType(otherDoc.Type)) {
				others = append(others, other.Ref)
			}
		}

		for _, ref := range others {
			if err := tx.Update(ref, []firestore.Update{
				{Path: "isDefault", Value: false},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}

		doc.IsDefault = true
		doc.UpdatedAt = now
		if err := tx.Set(target, doc); err != nil {
			return err
		}
		updated = addressFromDocument(id, strings.TrimSpace(ownerID), doc)
		return nil
	})
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.setDefault", err)
	}
	return updated, nil
}

func addressTypesOverlap(a domain.AddressType, b domain.AddressType) bool {
	if a.CoversBilling() && b.CoversBilling() {
		return true
	}
	return a.CoversShipping() && b.CoversShipping()
}

func addressToDocument(address domain.Address) addressDocument {
	now := time.Now().UTC()
	createdAt := address.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	return addressDocument{
		Label:     strings.TrimSpace(address.Label),
		Type:      string(address.Type),
		Name:      strings.TrimSpace(address.Name),
		Line1:     strings.TrimSpace(address.Line1),
		Line2:     strings.TrimSpace(address.Line2),
		City:      strings.TrimSpace(address.City),
		County:    strings.TrimSpace(address.County),
		Postcode:  strings.ToUpper(strings.TrimSpace(address.Postcode)),
		Country:   strings.TrimSpace(address.Country),
		Phone:     strings.TrimSpace(address.Phone),
		IsDefault: address.IsDefault,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
}

func addressFromDocument(id string, ownerID string, doc addressDocument) domain.Address {
	return domain.Address{
		ID:        id,
		OwnerID:   ownerID,
		Label:     doc.Label,
		Type:      domain.AddressType(doc.Type),
		Name:      doc.Name,
		Line1:     doc.Line1,
		Line2:     doc.Line2,
		City:      doc.City,
		County:    doc.County,
		Postcode:  doc.Postcode,
		Country:   doc.Country,
		Phone:     doc.Phone,
		IsDefault: doc.IsDefault,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)
